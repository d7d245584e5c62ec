// Package router registers the HTTP routes of the API on an Echo
// instance and attaches the middleware each group needs.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/monitoring"
)

// Deps bundles what the route groups need. Redis may be nil, in which
// case caching and rate limiting pass requests through.
type Deps struct {
	JWTSecret   string
	Redis       *redis.Client
	Cache       config.CacheConfig
	RateLimit   config.RateLimitConfig
	Catalog     *handler.CatalogHandler
	Participant *handler.ParticipantHandler
	Payments    *handler.PaymentHandler
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", monitoring.Handler())
}

// RegisterPublic registers the guest browse endpoints. Responses are
// cached briefly in Redis.
func RegisterPublic(e *echo.Echo, d Deps) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	e.GET("/v1/events", d.Catalog.ListEvents, cache)
	e.GET("/v1/events/:id", d.Catalog.GetEvent, cache)
}

// RegisterPayments registers the processor webhook. It carries its own
// signature, so neither JWT nor rate limiting applies.
func RegisterPayments(e *echo.Echo, d Deps) {
	e.POST("/v1/payments/webhook", d.Payments.Webhook)
}

// Register wires every route group.
func Register(e *echo.Echo, db *sql.DB, d Deps) {
	RegisterRoutes(e, db)
	RegisterPublic(e, d)
	RegisterPayments(e, d)
	RegisterOrganizer(e, d)
	RegisterParticipant(e, d)
}
