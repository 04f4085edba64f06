package routes

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
)

func RegisterCreditRoutes(mux *http.ServeMux, sh *handlers.StripeHandler, redis *redis.Client) {
	authMw := &middleware.Auth{
		RedisClient: redis,
	}

	mux.HandleFunc("GET /api/credit/plans", sh.GetPlans)
	mux.Handle("POST /api/credit/purchase", authMw.AuthMiddleware(http.HandlerFunc(sh.PurchasePlan)))
	mux.Handle("GET /api/credit/verify", authMw.AuthMiddleware(http.HandlerFunc(sh.VerifyPayment)))
}
