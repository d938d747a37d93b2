// Package session computes the cookie policy for session cookies and builds
// the signed cookie store shared by the handler and middleware packages.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the session.
	CookieName = "prefork_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// DefaultMaxAge applies when the configured expiry is absent or malformed.
	DefaultMaxAge = 24 * time.Hour

	// ProductionEnv is the runtime mode that turns on Secure and SameSite=None.
	ProductionEnv = "production"
)

// Session value keys.
const (
	userIDKey    = "user_id"
	issuedAtKey  = "issued_at"
	expiresAtKey = "expires_at"
)
