package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/isovault/backend/src/database"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/utils"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	clientContextKey    contextKey = "apiClient"
)

// AuthorizedClient is the per-request identity placed in the context by the
// auth middleware. RevealPAN gates access to decrypted account numbers.
type AuthorizedClient struct {
	ClientID  string
	RevealPAN bool
}

// GetClientFromContext retrieves the authenticated client from the request context.
func GetClientFromContext(ctx context.Context) (AuthorizedClient, bool) {
	client, ok := ctx.Value(clientContextKey).(AuthorizedClient)
	return client, ok
}

// ContextualLoggerMiddleware creates a request-scoped logger carrying a request ID.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the bearer token, confirms the client still
// exists, and propagates the client identity and an enriched logger.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
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

		claims, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		// Confirm the client still exists; revoked clients lose access as
		// soon as the cache entry expires.
		if _, err := h.lookupClient(claims.Subject); err != nil {
			ctxLogger.Warn("AuthMiddleware: Client lookup failed for valid token", "clientID", claims.Subject, "error", err)
			utils.SendJSONError(w, "Unknown API client", http.StatusUnauthorized)
			return
		}

		enrichedLogger := ctxLogger.With(slog.String("clientID", claims.Subject))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, clientContextKey, AuthorizedClient{
			ClientID:  claims.Subject,
			RevealPAN: claims.RevealPAN,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookupClient fetches an API client through the cache.
func (h *AuthHandler) lookupClient(clientID string) (*model.APIClient, error) {
	if cached, found := h.clientCache.Get(clientID); found {
		if client, ok := cached.(*model.APIClient); ok {
			return client, nil
		}
	}
	client, err := model.GetAPIClientByClientID(database.DB, clientID)
	if err != nil {
		return nil, err
	}
	h.clientCache.Set(clientID, client, cache.DefaultExpiration)
	return client, nil
}
