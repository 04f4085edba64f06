package routes

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
)

func RegisterChatRoutes(mux *http.ServeMux, ch *handlers.ChatHandler, cmh *handlers.CommunityHandler, redis *redis.Client) {
	authMw := &middleware.Auth{
		RedisClient: redis,
	}

	mux.Handle("POST /api/chat/create", authMw.AuthMiddleware(http.HandlerFunc(ch.CreateChat)))
	mux.Handle("GET /api/chat/get-all", authMw.AuthMiddleware(http.HandlerFunc(ch.GetChats)))
	mux.Handle("GET /api/chat/{id}", authMw.AuthMiddleware(http.HandlerFunc(ch.GetChatByID)))
	mux.Handle("PATCH /api/chat/{id}/name", authMw.AuthMiddleware(http.HandlerFunc(ch.UpdateChatName)))
	mux.Handle("DELETE /api/chat/{id}", authMw.AuthMiddleware(http.HandlerFunc(ch.DeleteChat)))
	mux.Handle("POST /api/chat/{id}/publish", authMw.AuthMiddleware(http.HandlerFunc(cmh.PublishMessage)))
}
