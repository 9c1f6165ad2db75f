package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/order-desk/internal/audit"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/config"
	"github.com/kiwari-pos/order-desk/internal/desk"
	"github.com/kiwari-pos/order-desk/internal/logger"
	"github.com/kiwari-pos/order-desk/internal/router"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/kiwari-pos/order-desk/internal/ws"
)

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := upstream.New(cfg.APIBaseURL,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithLogger(log),
	)

	var sink audit.Sink = audit.Nop{}
	if cfg.KafkaBrokers != "" {
		sink = audit.NewProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		logger.Info("audit producer enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAuditTopic)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close audit producer", "err", err)
		}
	}()

	hub := ws.NewHub()
	go hub.Run(ctx)

	reg := desk.NewRegistry(client, hub, sink, desk.Options{
		PageSize:       cfg.PageSize,
		ReconcileDelay: cfg.ReconcileDelay,
		TTL:            cfg.SessionTTL,
	}, log)
	defer reg.CloseAll()
	go reg.RunSweeper(ctx, time.Minute)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, bearer tokens are not signature checked")
	}
	r := router.New(cfg, reg, hub, auth.NewVerifier(cfg.JWTSecret), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "upstream", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "err", err)
			return
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("server stopped")
}
