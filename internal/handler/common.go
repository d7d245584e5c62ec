// Package handler translates HTTP requests into calls on the service
// layer and service errors into JSON responses.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// identity returns the authenticated caller or writes a 401.
func identity(c echo.Context) (model.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Identity{}, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return id, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// respondError maps service errors to status codes. Unknown errors are
// logged and reported as 500 without details.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient_stock"})
	case errors.Is(err, repository.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_quantity"})
	case errors.Is(err, repository.ErrAlreadyPaid):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_paid"})
	case errors.Is(err, repository.ErrPaymentFailed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment_failed"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrUnknownPayment):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_payment"})
	case errors.Is(err, repository.ErrInvalidEvent):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_event", "message": err.Error()})
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
