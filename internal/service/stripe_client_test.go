package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, body string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testWebhookSecret,
	})
	return signed.Header, signed.Payload
}

func TestVerifyWebhookExtractsIntent(t *testing.T) {
	c := NewStripeClient("sk_test_unused", testWebhookSecret)
	header, body := signedPayload(t, `{
		"id": "evt_123",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_abc", "object": "payment_intent", "status": "succeeded"}}
	}`)

	ev, err := c.VerifyWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.ID)
	assert.Equal(t, EventIntentSucceeded, ev.Type)
	assert.Equal(t, "pi_abc", ev.Ref)
}

func TestVerifyWebhookIgnoresOtherObjects(t *testing.T) {
	c := NewStripeClient("sk_test_unused", testWebhookSecret)
	header, body := signedPayload(t, `{
		"id": "evt_456",
		"object": "event",
		"type": "charge.succeeded",
		"data": {"object": {"id": "ch_1", "object": "charge"}}
	}`)

	ev, err := c.VerifyWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "charge.succeeded", ev.Type)
	assert.Empty(t, ev.Ref)
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	c := NewStripeClient("sk_test_unused", testWebhookSecret)
	header, body := signedPayload(t, `{"id": "evt_1", "object": "event", "type": "payment_intent.succeeded"}`)

	_, err := c.VerifyWebhook(append(body, ' '), header)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = NewStripeClient("sk", "whsec_other").VerifyWebhook(body, header)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = c.VerifyWebhook(body, "")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestStripeIntentStatus(t *testing.T) {
	assert.Equal(t, IntentSucceeded, stripeIntentStatus(stripe.PaymentIntentStatusSucceeded))
	assert.Equal(t, IntentFailed, stripeIntentStatus(stripe.PaymentIntentStatusCanceled))
	assert.Equal(t, IntentPending, stripeIntentStatus(stripe.PaymentIntentStatusRequiresPaymentMethod))
	assert.Equal(t, IntentPending, stripeIntentStatus(stripe.PaymentIntentStatusProcessing))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(15000), minorUnits(decimal.RequireFromString("150.00")))
	assert.Equal(t, int64(1999), minorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(0), minorUnits(decimal.Zero))
}
