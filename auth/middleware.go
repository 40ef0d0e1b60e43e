package auth

import (
	"context"
	"net/http"
	"strings"

	"vidtube/httputil"
)

type contextKey string

// userIDKey is the context key used to store the authenticated user ID.
const userIDKey contextKey = "user_id"

// UserID returns the authenticated user ID from the request context.
func UserID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	return uid, ok && uid != ""
}

// MustUserID returns the user ID for handlers mounted behind Require.
func MustUserID(r *http.Request) string {
	uid, _ := UserID(r)
	return uid
}

// Middleware resolves the Bearer access token into a user ID.
type Middleware struct {
	Tokens Tokens
}

func (m *Middleware) extract(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	uid, err := m.Tokens.ParseAccess(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return ""
	}
	return uid
}

// Require rejects requests without a valid access token and puts the user ID
// into the context.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.extract(r)
		if userID == "" {
			httputil.WriteError(w, httputil.Errorf(401, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// Optional injects the user ID into the context if a valid token is present,
// but does not reject unauthenticated requests.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := m.extract(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a request context carrying the given user ID. Intended
// for tests that invoke handlers directly.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
