// Package auth carries the session's user through a request context. It sits
// below both middleware and handler so neither has to import the other.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/google/uuid"
)

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// User returns the user resolved from the session, or nil for an anonymous
// request.
func User(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

// FromRequest is User(r.Context()).
func FromRequest(r *http.Request) *domain.User {
	return User(r.Context())
}

// UserID returns the session user's ID, or uuid.Nil when there is none.
func UserID(ctx context.Context) uuid.UUID {
	if u := User(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}
