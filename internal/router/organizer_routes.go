package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// RegisterOrganizer registers ORGANIZER-scoped endpoints under /v1.
// Ownership of the event is checked by the services.
func RegisterOrganizer(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleOrganizer),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)

	g.POST("/events", d.Catalog.CreateEvent)
	g.PUT("/events/:id", d.Catalog.UpdateEvent)
	g.PATCH("/events/:id", d.Catalog.UpdateEvent)
	g.PUT("/events/:id/customization", d.Catalog.CustomizeEvent)
	g.GET("/my-events", d.Catalog.MyEvents)
	g.GET("/events/:id/reservations", d.Catalog.EventReservations)
}
