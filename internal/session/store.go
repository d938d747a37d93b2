package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
)

// ErrNoSession is returned when a request carries no valid, unexpired session.
var ErrNoSession = errors.New("session: no valid session")

// Manager issues and reads signed session cookies. The cookie holds the user
// ID and expiry, so any worker process holding the same secret can validate
// a session issued by another.
type Manager struct {
	store   *sessions.CookieStore
	options Options
	clock   clockwork.Clock
}

// NewManager creates a Manager signing cookies with secret under opts.
func NewManager(secret []byte, opts Options, clock clockwork.Clock) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = opts.SessionsOptions()
	// Keep the codec's timestamp check in step with the cookie Max-Age.
	store.MaxAge(store.Options.MaxAge)

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Manager{
		store:   store,
		options: opts,
		clock:   clock,
	}
}

// Options returns the cookie policy the manager issues cookies with.
func (m *Manager) Options() Options {
	return m.options
}

// Start issues a fresh session for userID.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	sess, err := m.store.New(r, CookieName)
	if err != nil && sess == nil {
		return fmt.Errorf("new session: %w", err)
	}

	now := m.clock.Now()
	sess.Values[userIDKey] = userID.String()
	sess.Values[issuedAtKey] = now.Unix()
	sess.Values[expiresAtKey] = now.Add(m.options.MaxAge).Unix()

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UserID returns the user bound to the request's session.
func (m *Manager) UserID(r *http.Request) (uuid.UUID, error) {
	sess, err := m.store.Get(r, CookieName)
	if err != nil || sess.IsNew {
		return uuid.Nil, ErrNoSession
	}

	expiresAt, ok := sess.Values[expiresAtKey].(int64)
	if !ok || m.clock.Now().Unix() >= expiresAt {
		return uuid.Nil, ErrNoSession
	}

	raw, ok := sess.Values[userIDKey].(string)
	if !ok {
		return uuid.Nil, ErrNoSession
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrNoSession
	}
	return id, nil
}

// Destroy expires the session cookie on the client.
func (m *Manager) Destroy(w http.ResponseWriter) {
	cookie := m.options.Cookie(CookieName, "")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}
