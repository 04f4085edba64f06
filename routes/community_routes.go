package routes

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
)

func RegisterCommunityRoutes(mux *http.ServeMux, cmh *handlers.CommunityHandler, redis *redis.Client) {
	authMw := &middleware.Auth{
		RedisClient: redis,
	}

	mux.HandleFunc("GET /api/community/images", cmh.GetPublishedImages)
	mux.Handle("DELETE /api/community/image/{id}", authMw.AuthMiddleware(http.HandlerFunc(cmh.UnpublishImage)))
}
