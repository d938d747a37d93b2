// Package middleware contains HTTP middleware for the worker's service.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using Stack.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/prefork/internal/auth"
	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/DukeRupert/prefork/internal/handler"
	"github.com/DukeRupert/prefork/internal/service"
	"github.com/DukeRupert/prefork/internal/session"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware resolves the session cookie into a user.
type AuthMiddleware struct {
	userService service.UserService
	sessions    *session.Manager
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(userService service.UserService, sessions *session.Manager, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
	}
}

// WithUser loads the user named by the session cookie into the request
// context. Requests without a valid session continue anonymously.
//
// A signed session whose user is unknown to this process (the user was
// registered on another worker, or before a restart) has its cookie cleared.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.sessions.UserID(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetByID(r.Context(), userID)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				m.sessions.Destroy(w)
			} else {
				m.logger.Error("failed to load session user", "error", err, "user_id", userID)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// RequireUser rejects requests that WithUser did not authenticate with 401.
//
// IMPORTANT: This middleware must be used AFTER WithUser in the middleware chain.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromRequest(r) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /me", stack(meHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Recover turns a panicking handler into a 500 so the worker keeps serving.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic", "panic", rec, "path", r.URL.Path)
				handler.InternalErrorResponse(w, r, logger, errors.New("handler panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
