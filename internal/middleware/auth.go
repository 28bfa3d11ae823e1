package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mmynk/guestpass/internal/auth"
	"github.com/mmynk/guestpass/pkg/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the context key for the validated session claims.
const ClaimsKey contextKey = "claims"

// GetClaims extracts the session claims from the context.
// Returns nil if the request is not authenticated.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// IsAdmin reports whether the context carries an admin session.
func IsAdmin(ctx context.Context) bool {
	c := GetClaims(ctx)
	return c != nil && c.Role == auth.RoleAdmin
}

// SessionFromRequest validates the session cookie and returns its claims.
func SessionFromRequest(r *http.Request, jwtManager *auth.JWTManager, cookieName string) (*auth.Claims, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil, auth.ErrMissingToken
	}
	return jwtManager.Validate(cookie.Value)
}

// RequireAdmin returns a middleware that only lets admin sessions through.
// Anything else is redirected to loginPath.
func RequireAdmin(logger *slog.Logger, jwtManager *auth.JWTManager, cookieName, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := SessionFromRequest(r, jwtManager, cookieName)
			if err != nil || claims.Role != auth.RoleAdmin {
				logging.FromContext(r.Context(), logger).Info("Admin session required",
					"path", r.URL.Path,
					"error", err,
				)
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
