package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/order-desk/internal/middleware"
	"github.com/kiwari-pos/order-desk/internal/ws"
	"go.uber.org/zap"
)

// SessionHandler opens and closes desk sessions and upgrades their
// WebSocket connections.
type SessionHandler struct {
	reg SessionRegistry
	hub *ws.Hub
	log *zap.SugaredLogger
}

func NewSessionHandler(reg SessionRegistry, hub *ws.Hub, log *zap.SugaredLogger) *SessionHandler {
	return &SessionHandler{reg: reg, hub: hub, log: log}
}

// RegisterRoutes registers the per-session endpoints.
// Expected to be mounted at /desk/sessions/{sid} behind RequireSession;
// Create is mounted separately at POST /desk/sessions.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/", h.Close)
	r.Get("/ws", h.ServeWS)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject,omitempty"`
}

// Create handles POST /desk/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.reg.Create(middleware.TokenFromContext(r.Context()), middleware.ClaimsFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID.String(), Subject: s.Auth.Subject()})
}

// Close handles DELETE /desk/sessions/{sid}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.reg.Close(s.ID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeWS handles GET /desk/sessions/{sid}/ws.
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(h.hub, sessionFrom(r).ID, h.log, w, r)
}
