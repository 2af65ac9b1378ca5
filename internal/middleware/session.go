package middleware

import (
	"context"
	"net/http"

	"github.com/zhouzirui/friday/backend/internal/model/user"
)

// SessionCookie carries the sign-in session token.
const SessionCookie = "friday_session"

// SessionResolver maps a session token to its user.
type SessionResolver interface {
	CurrentUser(token string) (user.User, bool)
}

type userKey struct{}

// Session attaches the signed-in user, if any, to the request context.
func Session(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := SessionToken(r); token != "" {
				if u, ok := resolver.CurrentUser(token); ok {
					r = r.WithContext(context.WithValue(r.Context(), userKey{}, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken returns the session cookie value or "".
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// CurrentUser returns the user attached by Session.
func CurrentUser(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey{}).(user.User)
	return u, ok
}

// ResolveUserID prefers an explicit id and falls back to the signed-in user.
func ResolveUserID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if u, ok := CurrentUser(r.Context()); ok {
		return u.UID
	}
	return ""
}
