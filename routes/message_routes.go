package routes

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
)

func RegisterMessageRoutes(mux *http.ServeMux, mh *handlers.MessageHandler, redis *redis.Client) {
	authMw := &middleware.Auth{
		RedisClient: redis,
	}

	mux.Handle("POST /api/message/text", authMw.AuthMiddleware(http.HandlerFunc(mh.TextMessage)))
	mux.Handle("POST /api/message/image", authMw.AuthMiddleware(http.HandlerFunc(mh.ImageMessage)))
}
