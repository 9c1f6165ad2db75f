package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/config"
	"github.com/kiwari-pos/order-desk/internal/handler"
	"github.com/kiwari-pos/order-desk/internal/logger"
	mw "github.com/kiwari-pos/order-desk/internal/middleware"
	"github.com/kiwari-pos/order-desk/internal/ws"
	"go.uber.org/zap"
)

// New creates a Chi router with all desk routes wired up.
// Every route under /desk/sessions/{sid} resolves the session first.
func New(cfg *config.Config, reg handler.SessionRegistry, hub *ws.Hub, verifier *auth.Verifier, log *zap.SugaredLogger) chi.Router {
	if log == nil {
		log = logger.L()
	}
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	sessions := handler.NewSessionHandler(reg, hub, log)
	orders := handler.NewOrderHandler(log)
	composer := handler.NewComposerHandler(log)
	catalog := handler.NewCatalogHandler(log)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(verifier))

		r.Route("/desk/sessions", func(r chi.Router) {
			r.Post("/", sessions.Create)

			r.Route("/{sid}", func(r chi.Router) {
				r.Use(handler.RequireSession(reg))

				sessions.RegisterRoutes(r)
				orders.RegisterRoutes(r)
				composer.RegisterRoutes(r)
				catalog.RegisterRoutes(r)
			})
		})
	})

	log.Info("router initialized")
	return r
}
