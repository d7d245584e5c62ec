package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// RegisterParticipant registers PARTICIPANT-scoped endpoints under /v1:
// reserving, cancelling, listing and paying for tickets.
func RegisterParticipant(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleParticipant),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)

	g.POST("/events/:id/reservations", d.Participant.Reserve)
	g.GET("/my-reservations", d.Participant.MyReservations)
	g.GET("/my-tickets", d.Participant.MyTickets)
	g.GET("/reservations/:id", d.Participant.GetReservation)
	g.DELETE("/reservations/:id", d.Participant.Cancel)
	g.POST("/reservations/:id/payment", d.Participant.OpenPayment)
	g.GET("/payments/return", d.Payments.Return)
}
