// Package repository defines error types that are reused across the
// repositories and the services built on them. These sentinel values
// allow higher layers such as handlers to distinguish between
// different failure scenarios with errors.Is and translate them into
// HTTP responses. None of them is ever returned after a partial write:
// the transaction that produced them has been rolled back.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist or is
// not visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own, or lacks the role for it. Handlers
// should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrInsufficientStock means the ticket type does not have enough
// available tickets for the requested quantity at commit time.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidQuantity rejects a reservation quantity that is not positive.
var ErrInvalidQuantity = errors.New("invalid quantity")

// ErrAlreadyPaid is returned when cancelling or re-paying a reservation
// whose payment has completed.
var ErrAlreadyPaid = errors.New("already paid")

// ErrPaymentFailed is returned when opening a payment whose previous
// attempt ended in the failed state.
var ErrPaymentFailed = errors.New("payment failed")

// ErrUnknownPayment is returned by reconciliation when no payment
// matches the processor reference. The boundary acknowledges these so
// the processor stops retrying.
var ErrUnknownPayment = errors.New("unknown payment")

// ErrInvalidEvent rejects event input that breaks an invariant, such as
// an end date before the start date or a ticket type without stock.
var ErrInvalidEvent = errors.New("invalid event")
