package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/utils"
)

type contextKey string

const UserIDContextKey contextKey = "userID"

type Auth struct {
	RedisClient *redis.Client
}

// AuthMiddleware authenticates the access-token cookie and checks that the
// refresh-token cookie still matches the one pinned in Redis, so a rotation or
// logout elsewhere invalidates existing sessions.
func (a *Auth) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("access_token")
		if err != nil {
			if err == http.ErrNoCookie {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Authentication token required")
				return
			}
			log.Printf("Auth failed: Error reading cookie: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Bad Request")
			return
		}

		rcookie, err := r.Cookie("refresh_token")
		if err != nil {
			if err == http.ErrNoCookie {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Authentication token required")
				return
			}
			log.Printf("Auth failed: Error reading cookie: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Bad Request")
			return
		}

		jwtKey := os.Getenv("ACCESS_JWT_ACCESS_TOKEN_SECRET")

		claims, err := utils.ParseToken(cookie.Value, []byte(jwtKey))
		if err != nil {
			log.Printf("Auth failed: Invalid or expired token: %v", err)
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Invalid or expired token")
			return
		}

		key := fmt.Sprintf("refresh:%s", claims.UserID)

		redisOpCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		refreshTokenFromRedis, err := a.RedisClient.Get(redisOpCtx, key).Result()
		if err != nil {
			if err == redis.Nil {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Session expired")
				return
			}
			utils.RespondInternal(w, err, "Unable to verify session")
			return
		}

		if refreshTokenFromRedis != rcookie.Value {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
