package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/DukeRupert/prefork/internal"
	"github.com/DukeRupert/prefork/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the process's Prometheus registry behind the
// configured basic auth.
func MetricsHandler(cfg *internal.Config) http.Handler {
	auth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", auth.Handler(promhttp.Handler()))
	return mux
}

// ServeMetrics runs the primary's metrics endpoint on cfg.MetricsPort until
// ctx is cancelled. The primary binds it exclusively; it is not shared with
// the workers.
func ServeMetrics(ctx context.Context, cfg *internal.Config, logger *slog.Logger) error {
	addr := net.JoinHostPort("", strconv.Itoa(cfg.MetricsPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if !middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword).Enabled() {
		logger.Warn("Metrics endpoint has no authentication", "address", addr)
	}
	logger.Info("Metrics server started", "address", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
