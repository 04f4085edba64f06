package routes

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
)

func RegisterUserRoutes(mux *http.ServeMux, uh *handlers.UserHandler, redis *redis.Client) {
	authMw := &middleware.Auth{
		RedisClient: redis,
	}

	mux.Handle("GET /api/auth/me", authMw.AuthMiddleware(http.HandlerFunc(uh.GetUserInfo)))

	mux.HandleFunc("POST /api/auth/register", uh.Register)
	mux.HandleFunc("POST /api/auth/login", uh.Login)
	mux.HandleFunc("GET /api/auth/logout", uh.Logout)
	mux.HandleFunc("GET /api/auth/refresh-token", uh.RefreshTokenVerify)
}
