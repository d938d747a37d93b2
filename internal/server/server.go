// Package server is the service each worker process runs: the HTTP routes,
// the middleware stack and the shared-port listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/DukeRupert/prefork/internal"
	"github.com/DukeRupert/prefork/internal/handler"
	"github.com/DukeRupert/prefork/internal/metrics"
	"github.com/DukeRupert/prefork/internal/middleware"
	"github.com/DukeRupert/prefork/internal/service"
	"github.com/DukeRupert/prefork/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// Option configures a Server.
type Option func(*Server)

// WithWorkerID labels the server with its supervisor slot.
func WithWorkerID(id int) Option {
	return func(s *Server) { s.workerID = id }
}

// WithClock replaces the clock used for sessions and rate limits.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithUserService replaces the in-memory user service.
func WithUserService(us service.UserService) Option {
	return func(s *Server) { s.users = us }
}

// Server is a worker's HTTP service.
type Server struct {
	cfg      *internal.Config
	logger   *slog.Logger
	workerID int
	clock    clockwork.Clock
	users    service.UserService
	sessions *session.Manager
	limiter  *middleware.AuthRateLimiter
	handler  http.Handler
}

// New builds the service from cfg.
func New(cfg *internal.Config, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.users == nil {
		s.users = service.NewUserService(service.NewMemoryUserRepository(), logger, service.UserServiceConfig{Clock: s.clock})
	}

	policy := session.NewOptions(session.Config{Env: cfg.Env, Expiry: cfg.SessionExpiry})
	s.sessions = session.NewManager([]byte(cfg.SessionSecret), policy, s.clock)
	s.limiter = middleware.NewAuthRateLimiter(logger, s.clock)
	s.handler = s.routes()

	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	authMw := middleware.NewAuthMiddleware(s.users, s.sessions, s.logger)
	authHandler := handler.NewAuthHandler(s.users, s.sessions, s.logger, handler.WithLoginSuccess(s.limiter.LoginSucceeded))
	metricsAuth := middleware.NewMetricsAuthMiddleware(s.cfg.MetricsUsername, s.cfg.MetricsPassword)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	authHandler.RegisterRoutes(mux, middleware.Stack(authMw.WithUser, authMw.RequireUser))

	// Metrics sits directly above the mux so it sees the matched pattern.
	return middleware.Stack(
		middleware.Recover(s.logger),
		middleware.NewRequestLoggingMiddleware(s.logger).Handler,
		middleware.NewSecurityHeadersMiddleware(s.cfg.IsProduction()).Handler,
		metrics.Middleware,
		s.limiter.Wrap,
	)(mux)
}

// healthResponse identifies which worker answered.
type healthResponse struct {
	Status   string `json:"status"`
	WorkerID int    `json:"worker_id"`
	PID      int    `json:"pid"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		WorkerID: s.workerID,
		PID:      os.Getpid(),
	})
}

// Listen binds addr with SO_REUSEPORT where the platform supports it.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is cancelled, then drains in-flight requests
// for up to half the shutdown timeout so the worker exits before the
// primary escalates to SIGKILL.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go s.limiter.Run(limiterCtx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	policy := s.sessions.Options()
	s.logger.Info("Worker started",
		"address", ln.Addr().String(),
		"env", s.cfg.Env,
		"shared_port", SharedPort,
		slog.Group("session_cookie",
			"secure", policy.Secure,
			"same_site", policy.SameSiteName(),
			"max_age_ms", policy.MaxAgeMillis(),
		),
	)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout/2)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("Graceful shutdown complete")
	return nil
}

// Start is the worker entry point: it builds the service, binds the shared
// port and serves until ctx is cancelled.
func Start(ctx context.Context, cfg *internal.Config, logger *slog.Logger, opts ...Option) error {
	s := New(cfg, logger, opts...)

	ln, err := Listen(ctx, net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
