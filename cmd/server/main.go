// Command server runs the REST and WebSocket API for the monitoring
// engine. It does not run the capture scheduler itself — that's
// cmd/worker's job — so the two processes can scale independently.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RamfiAogusto/competitor-tracker/internal/api"
	"github.com/RamfiAogusto/competitor-tracker/internal/appconfig"
	"github.com/RamfiAogusto/competitor-tracker/internal/core"
)

func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "change-me-in-production")
	}

	c, err := core.New(ctx, cfg, "pkg/storage/schema.sql")
	if err != nil {
		slog.Error("failed to initialize core", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	server := api.NewServer(api.Dependencies{
		UserStore:     c.UserStore,
		TargetStore:   c.TargetStore,
		SnapshotStore: c.SnapshotStore,
		AlertStore:    c.AlertStore,
		Scheduler:     c.Scheduler,
		Bus:           c.Bus,
		Renderer:      c.Renderer,
		JWTSecret:     cfg.Auth.JWTSecret,
	})

	handler := corsMiddleware(cfg.HTTP.AllowedOrigin, server.Routes())

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: handler,
	}

	go func() {
		slog.Info("starting REST API server", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func corsMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
