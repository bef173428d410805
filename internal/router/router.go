package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/config"
	"github.com/iliyamo/cardgame-backend/internal/handler"
	"github.com/iliyamo/cardgame-backend/internal/middleware"
)

// Handlers groups the HTTP handlers registered by RegisterRoutes.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Game     *handler.GameHandler
	Purchase *handler.PurchaseHandler
	Products *handler.ProductHandler
}

// Endpoints lists the public routes reported by /health.
var Endpoints = []string{
	"GET /health",
	"POST /api/login",
	"POST /api/logout",
	"POST /api/save",
	"POST /api/load",
	"POST /api/purchase",
	"POST /api/purchases",
	"GET /api/products",
}

// RegisterRoutes mounts the game API on e.  The Redis client may be nil,
// in which case rate limiting and response caching are disabled.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client, log *zap.Logger) {
	e.GET("/health", h.Health.Health)

	api := e.Group("/api")
	if cfg.RateLimit.Enabled && rdb != nil && cfg.RateLimit.KeysOnUser() {
		// The limiter keys on the session user, so resolve it first.
		api.Use(middleware.ResolveSession(h.Auth.Sessions.Validate, cfg.StorageTimeout))
	}
	api.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)
	api.POST("/save", h.Game.Save)
	api.POST("/load", h.Game.Load)
	api.POST("/purchase", h.Purchase.Purchase)
	api.POST("/purchases", h.Purchase.History)
	// The catalog only changes on restart, so its listing is cacheable.
	api.GET("/products", h.Products.List, middleware.NewRedisCache(cfg.Cache, rdb))
}
