package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/auditline-platform/auditline/internal/api"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

// Middleware resolves the caller's identity from the bearer token and
// threads it through the request context as an explicit value. A request
// whose identity cannot be resolved at all, whether the token is missing,
// malformed or unverifiable, is a 400; 401 is reserved for a resolved
// identity that fails authorization.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUserNotSpecified)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUserNotSpecified)
				return
			}

			claims, err := jwtMgr.ValidateAccessToken(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrUserNotSpecified)
				return
			}

			ctx := context.WithValue(r.Context(), callerIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerID returns the authenticated caller's user ID, if any.
func CallerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerIDKey).(string)
	return id, ok && id != ""
}
