package auth

import (
	"net/http"
	"strings"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/users"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The empty string means no usable header was present.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth resolves the bearer token into a user and stores it in the
// request context. Requests without a valid session fail with 401.
func RequireAuth(service *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteError(w, r, apperror.NewAuthenticationError("missing or invalid authorization header", nil))
				return
			}

			user, err := service.ResolveSession(r.Context(), token)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the session user when a valid bearer token is
// present and continues anonymously otherwise. It never rejects a request.
func OptionalAuth(service *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if user, err := service.ResolveSession(r.Context(), token); err == nil {
					r = r.WithContext(NewContextWithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on the role ladder: Admin satisfies any
// requirement, Moderator satisfies Moderator and User. It must run after
// RequireAuth.
func RequireRole(required users.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteError(w, r, apperror.NewAuthenticationError("no authentication context", nil))
				return
			}
			if !user.Role.Satisfies(required) {
				WriteError(w, r, apperror.NewAuthorizationError("insufficient permissions", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
