package session

import (
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/sessions"
)

var expiryPattern = regexp.MustCompile(`^(\d+)([dhms])$`)

var unitMultipliers = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Config is the subset of the application configuration the policy reads.
// It is loaded once at startup and passed in by value.
type Config struct {
	Env    string
	Expiry string
}

// Options is the cookie policy for session cookies.
type Options struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// NewOptions computes the session cookie policy. It never fails: an absent or
// malformed expiry falls back to DefaultMaxAge.
func NewOptions(cfg Config) Options {
	production := cfg.Env == ProductionEnv

	maxAge, ok := ParseExpiry(cfg.Expiry)
	if !ok {
		maxAge = DefaultMaxAge
	}

	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteNoneMode
	}

	return Options{
		HTTPOnly: true,
		Secure:   production,
		SameSite: sameSite,
		MaxAge:   maxAge,
	}
}

// ParseExpiry parses "<digits><unit>" with unit one of s, m, h, d.
// Zero values and values too large for a time.Duration are rejected so a
// parsed expiry is always a positive number of milliseconds.
func ParseExpiry(s string) (time.Duration, bool) {
	m := expiryPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}

	unit := unitMultipliers[m[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, false
	}

	return time.Duration(n) * unit, true
}

// MaxAgeMillis returns the expiry in milliseconds.
func (o Options) MaxAgeMillis() int64 {
	return o.MaxAge.Milliseconds()
}

// maxAgeSeconds rounds up so that a sub-second expiry is not emitted as 0,
// which browsers treat as "no Max-Age".
func (o Options) maxAgeSeconds() int {
	secs := o.MaxAge / time.Second
	if o.MaxAge%time.Second != 0 {
		secs++
	}
	if secs > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(secs)
}

// Cookie builds an http.Cookie carrying value under this policy.
func (o Options) Cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     CookiePath,
		MaxAge:   o.maxAgeSeconds(),
		HttpOnly: o.HTTPOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// SessionsOptions converts the policy for use with a gorilla/sessions store.
func (o Options) SessionsOptions() *sessions.Options {
	return &sessions.Options{
		Path:     CookiePath,
		MaxAge:   o.maxAgeSeconds(),
		HttpOnly: o.HTTPOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// SameSiteName returns the lower-case attribute value, for logging.
func (o Options) SameSiteName() string {
	switch o.SameSite {
	case http.SameSiteNoneMode:
		return "none"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	default:
		return "default"
	}
}
