package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/idempotency"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/service"
)

// maxWebhookBody caps the payload read from the processor.
const maxWebhookBody = 64 << 10

// PaymentHandler receives results from the payment processor: the
// payer's redirect after checkout and signed webhooks.
type PaymentHandler struct {
	Reconciler *service.PaymentReconciler
	Verifier   service.WebhookVerifier
	Guard      *idempotency.Guard
}

// Return handles GET /v1/payments/return?payment_intent=. The redirect
// is unsigned, so the status is fetched from the processor before
// anything is applied.
func (h *PaymentHandler) Return(c echo.Context) error {
	ref := c.QueryParam("payment_intent")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_intent is required"})
	}
	st, err := h.Reconciler.Verify(c.Request().Context(), ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment_intent": ref, "status": st})
}

// Webhook handles POST /v1/payments/webhook.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ev, err := h.Verifier.VerifyWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		c.Logger().Warnf("webhook: rejected: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_signature"})
	}

	ctx := c.Request().Context()
	seen, gerr := h.Guard.Seen(ctx, ev.ID)
	if gerr != nil {
		c.Logger().Warnf("webhook: dedupe unavailable: %v", gerr)
	}
	if seen {
		return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
	}

	err = h.Reconciler.HandleWebhook(ctx, ev)
	if err != nil && !errors.Is(err, repository.ErrUnknownPayment) {
		// Nothing is recorded, so the processor's retry is handled.
		c.Logger().Errorf("webhook: %s %s: %v", ev.Type, ev.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}
	if merr := h.Guard.Mark(context.WithoutCancel(ctx), ev.ID); merr != nil {
		c.Logger().Warnf("webhook: record %s: %v", ev.ID, merr)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
