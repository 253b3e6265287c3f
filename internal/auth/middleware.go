package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/guitar-games/internal/model"
)

// contextKey is an unexported type for this package's context keys, so no
// other package can read or shadow the values stored under them.
type contextKey string

const (
	userKey     contextKey = "user"
	tokenKeyKey contextKey = "tokenKey"
)

// TokenResolver turns a bearer token key into the user that owns it.
// Implemented by service.AuthService.
type TokenResolver interface {
	ResolveToken(ctx context.Context, key string) (*model.User, error)
}

// SessionToucher refreshes the activity timestamp of the session behind a
// token key. Implemented by service.SessionTracker.
type SessionToucher interface {
	Touch(ctx context.Context, key string)
}

// RequireAuth enforces authentication on protected routes.
//
// It reads the token from the Authorization header, resolves it to a user,
// refreshes the matching session record's last-activity timestamp, and
// stores user and token key in the request context. Missing or unknown
// tokens end the chain with 401.
func RequireAuth(resolver TokenResolver, sessions SessionToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractTokenKey(r)
			if key == "" {
				unauthorized(w)
				return
			}

			user, err := resolver.ResolveToken(r.Context(), key)
			if err != nil {
				unauthorized(w)
				return
			}

			// Keeps the active-users view current: any authenticated
			// request counts as activity, not just logins.
			sessions.Touch(r.Context(), key)

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, tokenKeyKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the user if a valid token is present but never
// blocks the request. Logout uses it so revoking an already-dead token
// still returns 200.
func OptionalAuth(resolver TokenResolver, sessions SessionToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := extractTokenKey(r); key != "" {
				if user, err := resolver.ResolveToken(r.Context(), key); err == nil {
					sessions.Touch(r.Context(), key)
					ctx := context.WithValue(r.Context(), userKey, user)
					ctx = context.WithValue(ctx, tokenKeyKey, key)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user set by RequireAuth or
// OptionalAuth, or (nil, false) for anonymous requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// TokenKeyFromContext returns the bearer token key the request presented.
func TokenKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(tokenKeyKey).(string)
	return key, ok && key != ""
}

// extractTokenKey reads the Authorization header. Both "Bearer <key>" and
// "Token <key>" schemes are accepted; existing game clients send the
// latter.
func extractTokenKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}

	switch strings.ToLower(parts[0]) {
	case "bearer", "token":
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
}
