package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func issue(t *testing.T, m *Manager, userID uuid.UUID) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, m.Start(rec, req, userID))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestManager_StartAndRead(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(testSecret, NewOptions(Config{Env: "development", Expiry: "1h"}), clock)

	userID := uuid.New()
	cookie := issue(t, m, userID)

	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)

	got, err := m.UserID(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestManager_SharedSecretAcrossInstances(t *testing.T) {
	opts := NewOptions(Config{Expiry: "1d"})
	issuer := NewManager(testSecret, opts, nil)
	reader := NewManager(testSecret, opts, nil)

	userID := uuid.New()
	cookie := issue(t, issuer, userID)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)

	got, err := reader.UserID(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	opts := NewOptions(Config{Expiry: "1d"})
	issuer := NewManager(testSecret, opts, nil)
	reader := NewManager([]byte("another-secret-key-32-bytes-long"), opts, nil)

	cookie := issue(t, issuer, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)

	_, err := reader.UserID(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Expired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(testSecret, NewOptions(Config{Expiry: "30m"}), clock)

	cookie := issue(t, m, uuid.New())
	clock.Advance(31 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)

	_, err := m.UserID(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_NoCookie(t *testing.T) {
	m := NewManager(testSecret, NewOptions(Config{}), nil)

	_, err := m.UserID(httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Destroy(t *testing.T) {
	m := NewManager(testSecret, NewOptions(Config{Env: "production"}), nil)

	rec := httptest.NewRecorder()
	m.Destroy(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}
