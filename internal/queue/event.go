// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedQueue is the durable queue confirmations are
// published to.
const ReservationConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published once a reservation's payment
// completes. It carries enough for downstream consumers to log, notify
// or trigger analytics without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID  uint64 `json:"reservation_id"`
	PaymentID      uint64 `json:"payment_id"`
	UserID         uint64 `json:"user_id"`
	EventID        uint64 `json:"event_id"`
	EventTitle     string `json:"event_title"`
	TicketTypeName string `json:"ticket_type_name"`
	Quantity       int    `json:"quantity"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	ExternalRef    string `json:"external_ref"`
	ConfirmedAt    string `json:"confirmed_at"`
}
