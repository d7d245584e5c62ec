package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeClient implements PaymentClient and WebhookVerifier on top of
// Stripe PaymentIntents.
type StripeClient struct {
	api           *client.API
	webhookSecret string
}

// NewStripeClient returns a client bound to one secret key. The webhook
// secret may be empty when webhooks are not routed to this instance.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api, webhookSecret: webhookSecret}
}

// CreateIntent creates a PaymentIntent for the amount in minor units.
func (s *StripeClient) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", strconv.FormatUint(req.ReservationID, 10))
	params.AddMetadata("payment_id", strconv.FormatUint(req.PaymentID, 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return Intent{Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// IntentStatus asks Stripe for the current status of a PaymentIntent.
func (s *StripeClient) IntentStatus(ctx context.Context, ref string) (IntentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(ref, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return stripeIntentStatus(pi.Status), nil
}

// CancelIntent cancels a PaymentIntent. Stripe refuses to cancel an
// intent that already succeeded, so on error the current status is
// fetched and returned when it is final.
func (s *StripeClient) CancelIntent(ctx context.Context, ref string) (IntentStatus, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Cancel(ref, params)
	if err == nil {
		return stripeIntentStatus(pi.Status), nil
	}
	st, serr := s.IntentStatus(ctx, ref)
	if serr == nil && st != IntentPending {
		return st, nil
	}
	return "", fmt.Errorf("stripe: cancel payment intent: %w", err)
}

func stripeIntentStatus(s stripe.PaymentIntentStatus) IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	default:
		return IntentPending
	}
}

// VerifyWebhook checks the Stripe-Signature header and extracts the
// PaymentIntent id from payment_intent.* events.
func (s *StripeClient) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	var obj struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode event object: %w", err)
	}
	if obj.Object == "payment_intent" {
		out.Ref = obj.ID
	}
	return out, nil
}
