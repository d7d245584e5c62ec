package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/service"
)

// ParticipantHandler serves reservations and payments for participants.
type ParticipantHandler struct {
	Manager    *service.ReservationManager
	Reconciler *service.PaymentReconciler
	// StrictQuantity rejects a missing or malformed quantity instead of
	// treating it as 1.
	StrictQuantity bool
	// PublishableKey is handed to the browser together with the client
	// secret so it can complete the payment.
	PublishableKey string
}

type reserveRequest struct {
	TicketTypeID uint64          `json:"ticket_type_id"`
	Quantity     json.RawMessage `json:"quantity"`
}

// parseQuantity accepts a JSON number or a numeric string. Anything
// unparsable becomes 1 unless strict is set. A parsed value below 1 or
// too large for an int is always rejected.
func parseQuantity(raw json.RawMessage, strict bool) (int, error) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || s == "null" {
		if strict {
			return 0, repository.ErrInvalidQuantity
		}
		return 1, nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return 0, repository.ErrInvalidQuantity
	}
	if err != nil {
		if strict {
			return 0, repository.ErrInvalidQuantity
		}
		return 1, nil
	}
	if n <= 0 {
		return 0, repository.ErrInvalidQuantity
	}
	return n, nil
}

// Reserve handles POST /v1/events/:id/reservations.
func (h *ParticipantHandler) Reserve(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TicketTypeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_type_id is required"})
	}
	qty, err := parseQuantity(body.Quantity, h.StrictQuantity)
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.Manager.Create(c.Request().Context(), who, service.ReserveRequest{
		EventID:      eventID,
		TicketTypeID: body.TicketTypeID,
		Quantity:     qty,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ParticipantHandler) Cancel(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Manager.Cancel(c.Request().Context(), who, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ParticipantHandler) GetReservation(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	d, err := h.Manager.Get(c.Request().Context(), who, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// MyReservations handles GET /v1/my-reservations.
func (h *ParticipantHandler) MyReservations(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	list, err := h.Manager.ListByUser(c.Request().Context(), who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// MyTickets handles GET /v1/my-tickets: confirmed reservations only.
func (h *ParticipantHandler) MyTickets(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	list, err := h.Manager.ListTickets(c.Request().Context(), who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// OpenPayment handles POST /v1/reservations/:id/payment. Repeated calls
// return the same payment and client secret.
func (h *ParticipantHandler) OpenPayment(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	p, err := h.Reconciler.OpenPayment(c.Request().Context(), who, id)
	if err != nil {
		return respondError(c, err)
	}
	secret := ""
	if p.ClientSecret != nil {
		secret = *p.ClientSecret
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payment_id":      p.ID,
		"reservation_id":  p.ReservationID,
		"amount":          p.Amount.StringFixed(2),
		"currency":        p.Currency,
		"client_secret":   secret,
		"status":          p.Status,
		"publishable_key": h.PublishableKey,
	})
}
