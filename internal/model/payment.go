package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment tracks the money side of one reservation.  Amount is a
// snapshot of the reservation total taken when the payment row was
// created.  ExternalRef is the processor's id for the payment (a
// Stripe PaymentIntent id) and ClientSecret the handle the payer's
// browser uses to complete it; both are empty until an intent exists.
type Payment struct {
	ID            uint64          `json:"id"`
	ReservationID uint64          `json:"reservation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ExternalRef   *string         `json:"external_ref,omitempty"`
	ClientSecret  *string         `json:"-"`
	Status        PaymentStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
