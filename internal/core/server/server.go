package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tilemesh/terrabuild/internal/core/config"
	"github.com/tilemesh/terrabuild/internal/core/health"
	middleware "github.com/tilemesh/terrabuild/internal/core/middleware"
	"github.com/tilemesh/terrabuild/internal/core/router"
	"github.com/tilemesh/terrabuild/internal/metrics"
)

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, provider *metrics.Provider, opts router.Options, ready health.ReadinessReporter) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	r.Get("/metrics", provider.Handler().ServeHTTP)

	r.Get("/tiles/image/{z}/{x}/{y}", router.HandleImage(logger, opts))
	r.Get("/tiles/height/{z}/{x}/{y}", router.HandleHeight(logger, opts))
	r.Get("/tiles/status/{z}/{x}/{y}", router.HandleStatus(logger, opts))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
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
