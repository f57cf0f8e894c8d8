package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/security"
	"github.com/username/advisorcrm/backend/src/utils"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	advisorIDContextKey contextKey = "advisorID"
)

// ContextualLoggerMiddleware attaches a request-scoped logger carrying a
// generated request ID, so every log line of one request can be correlated.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the Bearer token of every protected request and
// enriches the contextual logger with the advisor identifier. Token issuance
// belongs to the CRM front-door; only validation happens here.
func AuthMiddleware(authService *security.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctxLogger.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
				utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				ctxLogger.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
				utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
				return
			}

			advisorID, err := authService.ValidateToken(tokenString)
			if err != nil {
				ctxLogger.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
				utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			enrichedLogger := ctxLogger.With(slog.String("advisorID", advisorID))
			ctx := logger.ToContext(r.Context(), enrichedLogger)
			ctx = context.WithValue(ctx, advisorIDContextKey, advisorID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdvisorIDFromContext returns the authenticated advisor identifier.
func GetAdvisorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(advisorIDContextKey).(string)
	return id, ok
}
