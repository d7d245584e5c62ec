package service

import (
	"errors"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/ticket-sales/internal/repository"
)

// Logger is the subset of echo.Logger the services write to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

func defaultLogger(prefix string) Logger {
	return log.New(prefix)
}

// outcome labels an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, repository.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, repository.ErrForbidden):
		return "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, repository.ErrUnknownPayment):
		return "unknown_payment"
	default:
		return "error"
	}
}
