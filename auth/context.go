package auth

import (
	"context"

	"github.com/user/formanga-auth/users"
)

// contextKey is a private type for context keys, preventing collisions with
// keys from other packages.
type contextKey string

const userContextKey contextKey = "auth_user"

// NewContextWithUser returns a child context carrying the session user.
func NewContextWithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the session user placed by the middleware. The
// second return reports whether a user was present.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(userContextKey).(*users.User)
	return user, ok
}
