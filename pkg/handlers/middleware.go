package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/auth"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ContextKeyUserID is the context key for user ID
	ContextKeyUserID ContextKey = "userID"
	// ContextKeyBearerToken is the context key for bearer token
	ContextKeyBearerToken ContextKey = "bearerToken"
)

// userCacheTTL bounds how long a validated user id skips the DB lookup.
const userCacheTTL = 5 * time.Minute

// AuthMiddleware verifies bearer tokens and adds the user ID to the request
// context. Identity is checked before anything else happens to the request;
// unauthenticated callers never reach a handler body.
func AuthMiddleware(db *gorm.DB, tokenValidator auth.TokenValidator) func(http.Handler) http.Handler {
	knownUsers := gocache.New(userCacheTTL, 2*userCacheTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Missing authorization token"})
				return
			}

			parsedToken, err := tokenValidator.ValidateJWT(token)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid or expired token"})
				return
			}

			userID, err := auth.UserIDFromToken(*parsedToken)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid or expired token"})
				return
			}

			// Auto-create identity-provider users on first contact; cached
			// so the upsert doesn't hit the DB on every request.
			if _, cached := knownUsers.Get(userID.String()); !cached {
				if err := models.EnsureUser(db, userID); err != nil {
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, map[string]string{"error": "Failed to ensure user exists"})
					return
				}
				knownUsers.SetDefault(userID.String(), struct{}{})
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			ctx = context.WithValue(ctx, ContextKeyBearerToken, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken pulls the token from the Authorization header, falling back to
// a token query parameter for WebSocket upgrades where headers are tricky.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// GetUserIDFromContext retrieves the user ID from the request context
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	userID, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// GetBearerTokenFromContext retrieves the bearer token from the request context
func GetBearerTokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(ContextKeyBearerToken).(string)
	if !ok {
		return ""
	}
	return token
}
