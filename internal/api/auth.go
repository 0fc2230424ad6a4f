package api

import (
	"context"
	"net/http"
	"strings"

	"askd/internal/ratelimit"
)

// TokenVerifier resolves a bearer token to a username.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type identityContextKey struct{}

// Identity resolves the caller's identity from the Authorization header.
// No header means the guest identity, not an error; a present but invalid
// token is rejected with 401.
func Identity(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ratelimit.Guest

			if header := r.Header.Get("Authorization"); header != "" {
				const prefix = "Bearer "
				if !strings.HasPrefix(header, prefix) {
					httpError(w, http.StatusUnauthorized, "authentication_error", "malformed authorization header")
					return
				}
				username, err := tokens.Verify(header[len(prefix):])
				if err != nil {
					httpError(w, http.StatusUnauthorized, "authentication_error", "invalid token")
					return
				}
				identity = username
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity resolved by the Identity
// middleware, defaulting to guest.
func IdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityContextKey{}).(string); ok {
		return v
	}
	return ratelimit.Guest
}
