package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"bookcatalog/internal/auth"
)

// AuthMiddleware requires a valid bearer token. With an empty secret the
// guard is disabled.
func AuthMiddleware(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if secret == "" {
		logger.Warn("JWT secret not configured, write routes are unauthenticated")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				logger.Debug("Rejected token", "request_id", RequestIDFrom(r), "error", err)
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}

			ctx := ContextWithUser(r.Context(), claims.Sub, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
