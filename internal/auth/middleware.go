package auth

import (
	"context"
	"net/http"

	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/utils"
)

type contextKey string

const authContextKey contextKey = "auth_context"

// Middleware verifies the bearer token and stores the caller's AuthContext in
// the request context.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			authCtx, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", err.Error())
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. It must run after Middleware.
func RequireRole(log *logger.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := FromContext(r.Context())
			if !ok || !authCtx.HasRole(roles...) {
				log.LogSecurity("ROLE_DENIED", r.Method+" "+r.URL.Path+" as "+string(authCtx.Role))
				utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithAuthContext(ctx context.Context, a models.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, a)
}

// Helper to extract the caller in handlers
func FromContext(ctx context.Context) (models.AuthContext, bool) {
	a, ok := ctx.Value(authContextKey).(models.AuthContext)
	return a, ok
}
