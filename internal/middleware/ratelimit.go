package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/DukeRupert/prefork/internal/handler"
	"github.com/jonboulle/clockwork"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter counts requests per key in fixed windows. Counts live in the
// worker process, so with N workers a client can reach up to N times the
// limit when the kernel spreads its connections.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	clock       clockwork.Clock

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter. A nil clock uses the real clock.
func NewRateLimiter(maxAttempts int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		clock:       clock,
		entries:     make(map[string]*rateLimitEntry),
	}
}

// Allow counts a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, exists := rl.entries[key]
	if !exists || now.Sub(entry.windowStart) >= rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true
	}
	return false
}

// Reset clears the count for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// TimeUntilReset returns how long until the window for key closes.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}
	elapsed := rl.clock.Since(entry.windowStart)
	if elapsed >= rl.window {
		return 0
	}
	return rl.window - elapsed
}

// Run drops expired entries once per window until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= rl.window {
			delete(rl.entries, key)
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// Limit returns middleware that answers 429 once a client exceeds limiter.
func Limit(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			if !limiter.Allow(clientIP) {
				logger.Warn("rate limit exceeded",
					"ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
				)

				// Round up so clients never retry inside the window.
				wait := limiter.TimeUntilReset(clientIP)
				retryAfter := int((wait + time.Second - 1) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				handler.ErrorResponse(w, r, logger, domain.RateLimit("RateLimiter.Allow"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Auth Rate Limiter (combined limiter for auth endpoints)
// =============================================================================

// AuthRateLimiter holds the limiters for the auth endpoints.
type AuthRateLimiter struct {
	Login    *RateLimiter
	Register *RateLimiter
	logger   *slog.Logger
}

// NewAuthRateLimiter creates rate limiters for auth endpoints with defaults:
// - Login: 10 attempts per 15 minutes
// - Register: 5 attempts per hour
func NewAuthRateLimiter(logger *slog.Logger, clock clockwork.Clock) *AuthRateLimiter {
	return &AuthRateLimiter{
		Login:    NewRateLimiter(10, 15*time.Minute, clock),
		Register: NewRateLimiter(5, time.Hour, clock),
		logger:   logger,
	}
}

// Run sweeps both limiters until ctx is done.
func (a *AuthRateLimiter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, rl := range []*RateLimiter{a.Login, a.Register} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.Run(ctx)
		}()
	}
	wg.Wait()
}

// LoginSucceeded clears the login count of the request's client, so a user
// who finally gets the password right is not locked out afterwards.
func (a *AuthRateLimiter) LoginSucceeded(r *http.Request) {
	a.Login.Reset(getClientIP(r))
}

// Wrap applies the matching limiter to POST /login and POST /register.
func (a *AuthRateLimiter) Wrap(next http.Handler) http.Handler {
	login := Limit(a.Login, a.logger)(next)
	register := Limit(a.Register, a.logger)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch r.URL.Path {
			case "/login":
				login.ServeHTTP(w, r)
				return
			case "/register":
				register.ServeHTTP(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
