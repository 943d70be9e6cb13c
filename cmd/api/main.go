// Package main is the entry point for the trip agenda API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/incentive-trips/backend/internal/agenda"
	"github.com/incentive-trips/backend/internal/app"
	"github.com/incentive-trips/backend/internal/config"
	"github.com/incentive-trips/backend/internal/errlog"
	"github.com/incentive-trips/backend/internal/handler"
	"github.com/incentive-trips/backend/internal/middleware"
	"github.com/incentive-trips/backend/internal/service"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	errs, err := errlog.Open(cfg.ErrorLogPath)
	if err != nil {
		slog.Error("failed to open error log", "path", cfg.ErrorLogPath, "error", err)
		os.Exit(1)
	}
	defer errs.Close()

	// --- Stores -----------------------------------------------------------
	stores, err := app.OpenStores(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	locker, closeLocker, err := app.NewLocker(cfg, logger)
	if err != nil {
		slog.Error("failed to connect lock backend", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	// --- Services ---------------------------------------------------------
	trips := service.NewTripService(stores.Trips, stores.Backups, locker, errs, logger, service.Options{
		Agenda:         agenda.Options{HeuristicMatch: cfg.HeuristicMatch},
		BackupRequired: cfg.BackupRequired,
		LockWait:       cfg.LockWait,
	})

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Mount("/", handler.NewServer(trips, logger, cfg.IsDevelopment()).Routes())

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.LockWait,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store, "backup_store", cfg.BackupStore, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
