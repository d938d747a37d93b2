package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))
	rec := httptest.NewRecorder()
	mw.Handler(h).ServeHTTP(rec, req)
	return rec, buf.String()
}

func TestRequestLoggingMiddleware_LogsRequest(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/me", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "curl/8.5.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	_, out := serveLogged(t, h, req)

	for _, want := range []string{"method=GET", "path=/me", "status=404", "duration_ms=", "ip=203.0.113.9", "curl/8.5.0", "request_id="} {
		assert.Contains(t, out, want)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQueryParams(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/login?token=secrettoken123&page=2", nil)
	_, out := serveLogged(t, h, req)

	assert.NotContains(t, out, "secrettoken123")
	assert.Contains(t, out, "token=[REDACTED]")
	assert.Contains(t, out, "page=2")
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/me", "", "/me"},
		{"/x", "password=hunter2", "/x?password=[REDACTED]"},
		{"/x", "API_KEY=abc", "/x?API_KEY=[REDACTED]"},
		{"/x", "a=1&secret=s", "/x?a=1&secret=[REDACTED]"},
		{"/x", "novalue", "/x"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizePath(tt.path, tt.query), "query %q", tt.query)
	}
}

func TestRequestLoggingMiddleware_PassesRequestThrough(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response body"))
	})

	rec, _ := serveLogged(t, h, httptest.NewRequest("POST", "/register", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "value", rec.Header().Get("X-Custom"))
	assert.Equal(t, "response body", rec.Body.String())
}

func TestRequestLoggingMiddleware_RequestID(t *testing.T) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	rec, _ := serveLogged(t, h, httptest.NewRequest("GET", "/me", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(RequestIDHeader, incoming)
	serveLogged(t, h, req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\nforged=1")
	serveLogged(t, h, req)
	assert.NotEqual(t, "not a uuid\nforged=1", seen)
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec, out := serveLogged(t, h, httptest.NewRequest("GET", path, nil))
			assert.Empty(t, out)
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		})
	}
}
