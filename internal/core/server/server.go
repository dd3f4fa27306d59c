// Package server wires the API routes onto chi and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FAIRiCUBE/querycube-web/internal/core/config"
	"github.com/FAIRiCUBE/querycube-web/internal/core/health"
	middleware "github.com/FAIRiCUBE/querycube-web/internal/core/middleware"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/core/router"
)

// Deps are the collaborators behind the routes. Metrics and Ready may be nil.
type Deps struct {
	Runner  router.Runner
	Metrics http.Handler
	Ready   health.ReadinessReporter
}

func NewHandler(cfg config.Config, logger *slog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	// the browser client posts sample files cross-origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(deps.Ready))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics)
	}

	defaults := router.Defaults{
		Credentials:    model.Credentials{Username: cfg.Remote.Username, Password: cfg.Remote.Password},
		Approximate:    cfg.Extract.Approximate,
		Offset:         cfg.Extract.Offset,
		MaxUploadBytes: cfg.Extract.MaxUploadBytes,
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/test", router.Test())
		r.Post("/wormpicker", router.Wormpicker(logger, defaults, deps.Runner))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		// extraction of many layers can take several layer timeouts
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
