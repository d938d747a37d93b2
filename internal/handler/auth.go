// Package handler contains the HTTP handlers a worker process serves.
//
// Handlers parse the request, run the form bindings, call into the service
// layer and write JSON responses. Errors go through ErrorResponse so that
// domain codes map to HTTP statuses in one place.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/prefork/internal/auth"
	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/DukeRupert/prefork/internal/form"
	"github.com/DukeRupert/prefork/internal/metrics"
	"github.com/DukeRupert/prefork/internal/service"
	"github.com/DukeRupert/prefork/internal/session"
	"github.com/google/uuid"
)

// maxBodyBytes caps auth request bodies.
const maxBodyBytes = 1 << 16

// AuthHandler handles registration, login and logout.
//
// Routes handled:
// - POST /register                         -> Register
// - POST /login                            -> Login
// - POST /logout                           -> Logout
// - GET  /me                               -> Me (behind RequireUser)
// - POST /forms/{form}/fields/{field}/blur -> Blur
type AuthHandler struct {
	userService service.UserService
	sessions    *session.Manager
	logger      *slog.Logger
	forms       map[string]*form.Form
	onLogin     func(*http.Request)
}

// AuthOption configures an AuthHandler.
type AuthOption func(*AuthHandler)

// WithLoginSuccess registers fn to run after a login has started a session.
func WithLoginSuccess(fn func(*http.Request)) AuthOption {
	return func(h *AuthHandler) { h.onLogin = fn }
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
func NewAuthHandler(userService service.UserService, sessions *session.Manager, logger *slog.Logger, opts ...AuthOption) *AuthHandler {
	h := &AuthHandler{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
		forms: map[string]*form.Form{
			"login":    form.LoginForm(),
			"register": form.RegisterForm(),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// Response Types
// =============================================================================

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned after a session is issued.
type SessionResponse struct {
	User UserResponse `json:"user"`
	// ExpiresIn is the session lifetime in milliseconds.
	ExpiresIn int64 `json:"expires_in"`
}

// BlurResponse reports the outcome of a single field's blur validation.
type BlurResponse struct {
	Field   string `json:"field"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName(),
		CreatedAt: u.CreatedAt,
	}
}

// =============================================================================
// POST /register - Process Registration
// =============================================================================

// Register creates an account and starts a session for it.
//
// Success: 201 with a SessionResponse and the session cookie set.
// Errors: 400 with field errors, 409 if the email is taken.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	values, err := parseValues(w, r)
	if err != nil {
		h.badRequest(w, r, "register", err)
		return
	}

	if ve := h.forms["register"].Validate(values); ve != nil {
		metrics.AuthAttempt("register", "invalid")
		ValidationErrorResponse(w, r, h.logger, ve)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    values[form.FieldEmail],
		Name:     values[form.FieldName],
		Password: values[form.FieldPassword],
	})
	if err != nil {
		metrics.AuthAttempt("register", resultFor(err))
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.sessions.Start(w, r, user.ID); err != nil {
		metrics.AuthAttempt("register", "error")
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.AuthAttempt("register", "success")
	writeJSON(w, http.StatusCreated, h.sessionResponse(user))
}

// =============================================================================
// POST /login - Process Login
// =============================================================================

// Login checks credentials and starts a session.
//
// Unknown emails and wrong passwords produce the same 401 response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	values, err := parseValues(w, r)
	if err != nil {
		h.badRequest(w, r, "login", err)
		return
	}

	if ve := h.forms["login"].Validate(values); ve != nil {
		metrics.AuthAttempt("login", "invalid")
		ValidationErrorResponse(w, r, h.logger, ve)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), values[form.FieldEmail], values[form.FieldPassword])
	if err != nil {
		metrics.AuthAttempt("login", resultFor(err))
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.sessions.Start(w, r, user.ID); err != nil {
		metrics.AuthAttempt("login", "error")
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.AuthAttempt("login", "success")
	if h.onLogin != nil {
		h.onLogin(r)
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(user))
}

// =============================================================================
// POST /logout - Process Logout
// =============================================================================

// Logout expires the session cookie. It is idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w)
	h.logger.Debug("user logged out")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GET /me - Current User
// =============================================================================

// Me returns the user bound to the request's session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.FromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// =============================================================================
// POST /forms/{form}/fields/{field}/blur - Field Blur Validation
// =============================================================================

// Blur runs the blur hook of one field against the submitted values.
// Fields that do not validate on blur always report valid.
func (h *AuthHandler) Blur(w http.ResponseWriter, r *http.Request) {
	f, ok := h.forms[r.PathValue("form")]
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	values, err := parseValues(w, r)
	if err != nil {
		h.badRequest(w, r, "blur", err)
		return
	}

	field := r.PathValue("field")
	resp := BlurResponse{Field: field, Valid: true}
	if err := f.Blur(field, values); err != nil {
		resp.Valid = false
		resp.Message = err.Error()
		var fe *form.FieldError
		if errors.As(err, &fe) {
			resp.Message = fe.Message
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers the auth routes on mux. requireUser wraps the
// routes that need a session.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.Handle("GET /me", requireUser(http.HandlerFunc(h.Me)))
	mux.HandleFunc("POST /forms/{form}/fields/{field}/blur", h.Blur)
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *AuthHandler) sessionResponse(user *domain.User) SessionResponse {
	return SessionResponse{
		User:      newUserResponse(user),
		ExpiresIn: h.sessions.Options().MaxAgeMillis(),
	}
}

func (h *AuthHandler) badRequest(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.Info("failed to parse request body", "action", action, "error", err)
	ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "", "Invalid request body"))
}

// parseValues reads a JSON object or a URL-encoded form into form values.
func parseValues(w http.ResponseWriter, r *http.Request) (form.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]string
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		return form.Values(raw), nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return form.FromURLValues(r.PostForm), nil
}

// resultFor labels a failed auth attempt for metrics.
func resultFor(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return "invalid"
	}
	switch domain.ErrorCode(err) {
	case domain.EUNAUTHORIZED:
		return "failure"
	case domain.ECONFLICT:
		return "conflict"
	case domain.EINVALID:
		return "invalid"
	default:
		return "error"
	}
}
