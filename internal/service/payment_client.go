// Package service holds the transactional core of the ticket sales
// flow: the inventory ledger, the reservation manager, the payment
// reconciler and the event catalog. Handlers call into these types;
// SQL stays in the repository package and transaction boundaries stay
// here.
package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// IntentStatus is the processor-side state of a payment intent as far
// as reconciliation cares.
type IntentStatus string

const (
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
	IntentPending   IntentStatus = "pending"
)

// IntentRequest describes a payment intent to create. IdempotencyKey is
// forwarded to the processor so that a retried request yields the same
// intent.
type IntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	ReservationID  uint64
	PaymentID      uint64
	IdempotencyKey string
}

// Intent is the processor's answer to an IntentRequest.
type Intent struct {
	Ref          string
	ClientSecret string
}

// PaymentClient talks to the payment processor. Each reconciler is
// handed its own client so that credentials never live in globals.
type PaymentClient interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	IntentStatus(ctx context.Context, ref string) (IntentStatus, error)
	// CancelIntent cancels a pending intent and returns its final
	// status. An intent that settled first reports IntentSucceeded.
	CancelIntent(ctx context.Context, ref string) (IntentStatus, error)
}

// WebhookEvent is a verified processor notification reduced to what
// reconciliation needs.
type WebhookEvent struct {
	ID   string
	Type string
	Ref  string
}

// Processor notification types that reconciliation reacts to. A failed
// attempt is not final: the payer may retry on the same intent, so
// only a cancelled intent fails the payment.
const (
	EventIntentSucceeded     = "payment_intent.succeeded"
	EventIntentCanceled      = "payment_intent.canceled"
	EventIntentAttemptFailed = "payment_intent.payment_failed"
)

// WebhookVerifier authenticates a raw webhook body against its
// signature header.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// ErrBadSignature is returned by verifiers when a webhook cannot be
// authenticated.
var ErrBadSignature = errors.New("invalid webhook signature")

// minorUnits converts an amount to the processor's smallest currency
// unit, truncating anything below a cent.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}
