/**
 * @description
 * This file contains the session middleware for the HTTP router. The session
 * credential is a stateless signed token carried in a cookie; the middleware
 * verifies it on every request and injects the user ID into the request
 * context for handlers.
 */
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/matchpass/access-service/internal/auth"
)

// AuthCookieName is the cookie carrying the session token.
const AuthCookieName = "auth-token"

// userIDContextKey is a custom type for the context key to avoid collisions.
type userIDContextKey string

const userIDKey userIDContextKey = "userID"

// SessionAuthMiddleware creates a middleware that authenticates requests from
// the session cookie. An absent cookie and an invalid or expired token are
// treated identically: a bare 401 with no indication of the reason.
func SessionAuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.Verify(cookie.Value)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user ID from the request
// context. Handlers behind SessionAuthMiddleware should use this.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// setAuthCookie stores the session token in the auth cookie. Max-Age matches
// the token lifetime exactly, so cookie and token expire together.
func setAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookie deletes the auth cookie. This is the only way a client is
// de-authenticated; no server-side record exists to revoke.
func clearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
