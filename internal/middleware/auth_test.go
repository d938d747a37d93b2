package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/prefork/internal/auth"
	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/DukeRupert/prefork/internal/session"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock UserService Implementation
// =============================================================================

// mockUserService implements the service.UserService interface for testing.
type mockUserService struct {
	RegisterFunc     func(ctx context.Context, params domain.RegisterParams) (*domain.User, error)
	AuthenticateFunc func(ctx context.Context, email, password string) (*domain.User, error)
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errors.New("RegisterFunc not implemented")
}

func (m *mockUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return nil, errors.New("AuthenticateFunc not implemented")
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errors.New("GetByIDFunc not implemented")
}

// =============================================================================
// Test Helpers
// =============================================================================

const testSecret = "middleware-test-secret-0123456789abcdef"

func newTestSessions() *session.Manager {
	opts := session.NewOptions(session.Config{Env: "development", Expiry: "1h"})
	return session.NewManager([]byte(testSecret), opts, clockwork.NewFakeClock())
}

// requestWithSession returns a request carrying a session cookie for userID.
func requestWithSession(t *testing.T, sessions *session.Manager, userID uuid.UUID) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Start(rec, httptest.NewRequest("POST", "/login", nil), userID))

	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

// captureUser runs WithUser and returns the user the next handler saw.
func captureUser(mw *AuthMiddleware, req *http.Request) (*domain.User, *httptest.ResponseRecorder) {
	var seen *domain.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.FromRequest(r)
	})
	rec := httptest.NewRecorder()
	mw.WithUser(next).ServeHTTP(rec, req)
	return seen, rec
}

// =============================================================================
// WithUser Middleware Tests
// =============================================================================

func TestWithUser_NoCookie_ContinuesWithoutUser(t *testing.T) {
	mock := &mockUserService{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			t.Fatal("GetByID should not be called without a session")
			return nil, nil
		},
	}
	mw := NewAuthMiddleware(mock, newTestSessions(), discardLogger())

	user, _ := captureUser(mw, httptest.NewRequest("GET", "/me", nil))
	assert.Nil(t, user)
}

func TestWithUser_ValidSession_SetsUserInContext(t *testing.T) {
	sessions := newTestSessions()
	expected := &domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}

	mock := &mockUserService{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			assert.Equal(t, expected.ID, id)
			return expected, nil
		},
	}
	mw := NewAuthMiddleware(mock, sessions, discardLogger())

	user, _ := captureUser(mw, requestWithSession(t, sessions, expected.ID))
	require.NotNil(t, user)
	assert.Equal(t, expected.Email, user.Email)
}

func TestWithUser_UnknownUser_ClearsCookie(t *testing.T) {
	sessions := newTestSessions()
	mock := &mockUserService{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			return nil, domain.NotFound("UserService.GetByID", "user", id.String())
		},
	}
	mw := NewAuthMiddleware(mock, sessions, discardLogger())

	user, rec := captureUser(mw, requestWithSession(t, sessions, uuid.New()))
	assert.Nil(t, user)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestWithUser_ServiceError_KeepsCookie(t *testing.T) {
	sessions := newTestSessions()
	mock := &mockUserService{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			return nil, domain.Internal(errors.New("boom"), "UserService.GetByID", "Failed to retrieve user")
		},
	}
	mw := NewAuthMiddleware(mock, sessions, discardLogger())

	user, rec := captureUser(mw, requestWithSession(t, sessions, uuid.New()))
	assert.Nil(t, user)
	assert.Empty(t, rec.Result().Cookies(), "a transient failure must not log the user out")
}

func TestWithUser_ForeignSecret_Ignored(t *testing.T) {
	foreign := session.NewManager([]byte("some-other-secret-0123456789abcdef0"), newTestSessions().Options(), clockwork.NewFakeClock())
	mock := &mockUserService{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			t.Fatal("GetByID should not be called for a forged cookie")
			return nil, nil
		},
	}
	mw := NewAuthMiddleware(mock, newTestSessions(), discardLogger())

	user, _ := captureUser(mw, requestWithSession(t, foreign, uuid.New()))
	assert.Nil(t, user)
}

// =============================================================================
// RequireUser Middleware Tests
// =============================================================================

func TestRequireUser(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserService{}, newTestSessions(), discardLogger())

	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
		wantCalled bool
	}{
		{"authenticated", &domain.User{ID: uuid.New()}, http.StatusOK, true},
		{"anonymous", nil, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest("GET", "/me", nil)
			req.Header.Set("Accept", "application/json")
			if tt.user != nil {
				req = req.WithContext(auth.WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()

			mw.RequireUser(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

// =============================================================================
// Stack / Recover Tests
// =============================================================================

func TestStack_Order(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Stack(tag("outer"), tag("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}
