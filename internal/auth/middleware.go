package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or overwrite the
// values this package stores in a request context.
type contextKey string

const identityKey contextKey = "identity"

// LoadIdentity reads the session on every request and stores the username
// (if any) in the request context. It never rejects a request.
func LoadIdentity(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, ok := sessions.Get(r); ok {
				r = r.WithContext(WithIdentity(r.Context(), username))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity redirects anonymous requests to loginPath with 302 Found.
// onDenied, when non-nil, runs before the redirect (e.g. to set a flash
// message). Must be mounted after LoadIdentity.
func RequireIdentity(loginPath string, onDenied func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				if onDenied != nil {
					onDenied(w, r)
				}
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying username.
func WithIdentity(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, identityKey, username)
}

// IdentityFromContext returns the authenticated username, or ("", false) if
// the request is anonymous.
func IdentityFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(identityKey).(string)
	return username, ok && username != ""
}
