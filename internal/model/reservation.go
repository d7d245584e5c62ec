package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation records a participant's claim on a number of tickets of
// one ticket type.  It starts unconfirmed and becomes confirmed exactly
// once, when its payment completes.  Unconfirmed reservations may be
// cancelled, which returns the stock to the ticket type.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – participant who made the reservation.
//  TicketTypeID – ticket type being reserved.
//  Quantity     – number of tickets, fixed at creation.
//  Confirmed    – true once paid; never reverts.
//  CreatedAt    – creation timestamp.
type Reservation struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	TicketTypeID uint64    `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReservationDetail is a reservation joined with its ticket type and
// event, as listed to participants and organizers.
type ReservationDetail struct {
	Reservation
	TicketTypeName string          `json:"ticket_type_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	EventID        uint64          `json:"event_id"`
	EventTitle     string          `json:"event_title"`
	EventStart     time.Time       `json:"event_start"`
	PaymentStatus  *PaymentStatus  `json:"payment_status,omitempty"`
}

// TotalPrice is the unit price times the quantity.
func TotalPrice(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
