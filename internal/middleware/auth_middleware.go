package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"chat-go/internal/auth"
	"chat-go/internal/config"
	appredis "chat-go/internal/redis"
)

// contextKey is a private type for context values to avoid key collisions.
type contextKey string

// UserIDKey is the context key under which the authenticated user ID is stored.
const UserIDKey contextKey = "userID"

// AuthMiddleware validates the JWT carried in the session cookie and stores
// the authenticated user ID in the request context. Requests without a valid,
// non-revoked token are rejected with 401.
func AuthMiddleware(next http.Handler, authCfg config.AuthConfig, blacklist auth.TokenBlacklist, presence appredis.PresenceCache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCfg.CookieName)
		if err != nil || cookie.Value == "" {
			writeAuthError(w, "Unauthorized")
			return
		}

		claims, err := auth.ValidateToken(r.Context(), cookie.Value, authCfg.JWTSecretKey, blacklist)
		if err != nil {
			writeAuthError(w, "Unauthorized")
			return
		}

		if presence != nil {
			if err := presence.Touch(r.Context(), claims.UserID, time.Now()); err != nil {
				log.Printf("presence touch failed for user %d: %v", claims.UserID, err)
			}
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext returns the authenticated user ID from the context.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
