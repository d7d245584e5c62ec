package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/monitoring"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

const publishTimeout = 5 * time.Second

// PaymentReconciler drives the payment state machine
// pending -> completed | failed. Completed and failed are terminal:
// repeated or late processor notifications never change them, and a
// completed payment confirms its reservation in the same transaction.
type PaymentReconciler struct {
	db           *database.DB
	reservations *repository.ReservationRepo
	tickets      *repository.TicketTypeRepo
	payments     *repository.PaymentRepo
	client       PaymentClient
	publisher    Publisher
	currency     string
	log          Logger
}

// NewPaymentReconciler wires a reconciler. A nil publisher disables
// confirmation events.
func NewPaymentReconciler(db *database.DB, reservations *repository.ReservationRepo, tickets *repository.TicketTypeRepo,
	payments *repository.PaymentRepo, client PaymentClient, publisher Publisher, currency string) *PaymentReconciler {
	if db == nil || reservations == nil || tickets == nil || payments == nil || client == nil {
		panic("nil dependency passed to NewPaymentReconciler")
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &PaymentReconciler{
		db:           db,
		reservations: reservations,
		tickets:      tickets,
		payments:     payments,
		client:       client,
		publisher:    publisher,
		currency:     currency,
		log:          defaultLogger("payments"),
	}
}

// SetLogger replaces the reconciler's logger.
func (r *PaymentReconciler) SetLogger(l Logger) { r.log = l }

// OpenPayment returns the pending payment of one of the caller's
// reservations, creating the row and the processor intent on first
// use. Calling it again returns the same payment and intent.
func (r *PaymentReconciler) OpenPayment(ctx context.Context, who model.Identity, reservationID uint64) (model.Payment, error) {
	p, err := r.getOrCreate(ctx, who, reservationID)
	if err != nil {
		return model.Payment{}, err
	}
	if p.ExternalRef != nil {
		return p, nil
	}

	in, err := r.client.CreateIntent(ctx, IntentRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		ReservationID:  p.ReservationID,
		PaymentID:      p.ID,
		IdempotencyKey: fmt.Sprintf("reservation-%d-payment-%d", p.ReservationID, p.ID),
	})
	if err != nil {
		return model.Payment{}, err
	}
	attached, err := r.payments.AttachIntent(ctx, p.ID, in.Ref, in.ClientSecret)
	if err != nil {
		return model.Payment{}, fmt.Errorf("attach intent: %w", err)
	}
	if !attached {
		// Someone else attached an intent first; theirs wins.
		return r.payments.GetByID(ctx, p.ID)
	}
	p.ExternalRef, p.ClientSecret = &in.Ref, &in.ClientSecret
	return p, nil
}

func (r *PaymentReconciler) getOrCreate(ctx context.Context, who model.Identity, reservationID uint64) (model.Payment, error) {
	var p model.Payment
	fn := func(tx *sql.Tx) error {
		res, err := r.reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != who.UserID {
			return repository.ErrNotFound
		}
		p, err = r.payments.GetByReservationTx(ctx, tx, res.ID)
		if errors.Is(err, repository.ErrNotFound) {
			if res.Confirmed {
				return repository.ErrAlreadyPaid
			}
			t, err := r.tickets.GetForUpdateTx(ctx, tx, res.TicketTypeID)
			if err != nil {
				return err
			}
			p = model.Payment{
				ReservationID: res.ID,
				Amount:        model.TotalPrice(t.Price, res.Quantity),
				Currency:      r.currency,
			}
			return r.payments.CreateTx(ctx, tx, &p)
		}
		return err
	}

	err := r.db.WithTx(ctx, fn)
	if err != nil && database.IsUniqueViolation(err) {
		// A concurrent request inserted the row; the retry finds it.
		err = r.db.WithTx(ctx, fn)
	}
	if err != nil {
		return model.Payment{}, err
	}
	switch p.Status {
	case model.PaymentCompleted:
		return model.Payment{}, repository.ErrAlreadyPaid
	case model.PaymentFailed:
		return model.Payment{}, repository.ErrPaymentFailed
	}
	return p, nil
}

// MarkSucceeded completes the payment with processor reference ref and
// confirms its reservation. Already completed payments are left as
// they are; failed payments are never resurrected.
func (r *PaymentReconciler) MarkSucceeded(ctx context.Context, ref string) error {
	return r.transition(ctx, ref, model.PaymentCompleted)
}

// MarkFailed fails the pending payment with reference ref. The
// reservation is untouched so the participant can cancel it.
func (r *PaymentReconciler) MarkFailed(ctx context.Context, ref string) error {
	return r.transition(ctx, ref, model.PaymentFailed)
}

func (r *PaymentReconciler) transition(ctx context.Context, ref string, to model.PaymentStatus) error {
	if ref == "" {
		return repository.ErrUnknownPayment
	}
	// Read without locks to learn the reservation, then lock
	// reservation before payment like every other writer.
	found, err := r.payments.GetByExternalRef(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warnf("reconcile %s: no payment with ref %s", to, ref)
		monitoring.TrackPayment(string(to), "unknown")
		return repository.ErrUnknownPayment
	}
	if err != nil {
		return err
	}

	var (
		applied bool
		res     model.Reservation
		p       model.Payment
	)
	defer monitoring.ObserveTx("reconcile", time.Now())
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		applied = false
		res, err = r.reservations.GetForUpdateTx(ctx, tx, found.ReservationID)
		if err != nil {
			return err
		}
		p, err = r.payments.GetForUpdateTx(ctx, tx, found.ID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return nil
		}
		ok, err := r.payments.TransitionTx(ctx, tx, p.ID, model.PaymentPending, to)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if !ok {
			return nil
		}
		if to == model.PaymentCompleted {
			if _, err := r.reservations.ConfirmTx(ctx, tx, res.ID); err != nil {
				return fmt.Errorf("confirm reservation: %w", err)
			}
		}
		applied = true
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		// Cancelled between the lookup and the lock.
		r.log.Warnf("reconcile %s: payment %s vanished", to, ref)
		monitoring.TrackPayment(string(to), "unknown")
		return repository.ErrUnknownPayment
	}
	if err != nil {
		monitoring.TrackPayment(string(to), "error")
		return err
	}

	if !applied {
		if p.Status != to {
			r.log.Warnf("reconcile: ignoring %s for payment %d already %s", to, p.ID, p.Status)
			monitoring.TrackPayment(string(to), "rejected")
		} else {
			monitoring.TrackPayment(string(to), "noop")
		}
		return nil
	}
	monitoring.TrackPayment(string(to), "applied")
	r.log.Infof("reconcile: payment %d for reservation %d is %s", p.ID, res.ID, to)
	if to == model.PaymentCompleted {
		r.publishConfirmed(ctx, p, ref)
	}
	return nil
}

func (r *PaymentReconciler) publishConfirmed(ctx context.Context, p model.Payment, ref string) {
	ev := queue.ReservationConfirmedEvent{
		ReservationID: p.ReservationID,
		PaymentID:     p.ID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		ExternalRef:   ref,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if d, err := r.reservations.GetDetail(ctx, p.ReservationID); err == nil {
		ev.UserID = d.UserID
		ev.EventID = d.EventID
		ev.EventTitle = d.EventTitle
		ev.TicketTypeName = d.TicketTypeName
		ev.Quantity = d.Quantity
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.publisher.PublishReservationConfirmed(pctx, ev); err != nil {
		r.log.Errorf("reconcile: publish confirmation for reservation %d: %v", p.ReservationID, err)
	}
}

// Verify asks the processor for the status of ref and applies it. It
// is used for the payer's redirect back from checkout, which carries
// no signature of its own.
func (r *PaymentReconciler) Verify(ctx context.Context, ref string) (IntentStatus, error) {
	if _, err := r.payments.GetByExternalRef(ctx, ref); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", repository.ErrUnknownPayment
		}
		return "", err
	}
	st, err := r.client.IntentStatus(ctx, ref)
	if err != nil {
		return "", err
	}
	switch st {
	case IntentSucceeded:
		return st, r.MarkSucceeded(ctx, ref)
	case IntentFailed:
		return st, r.MarkFailed(ctx, ref)
	}
	return st, nil
}

// AbandonIntent cancels the processor intent ref and applies the final
// status it reports. An intent that was paid just before the cancel
// confirms its reservation instead.
func (r *PaymentReconciler) AbandonIntent(ctx context.Context, ref string) (IntentStatus, error) {
	st, err := r.client.CancelIntent(ctx, ref)
	if err != nil {
		return "", err
	}
	switch st {
	case IntentSucceeded:
		return st, r.MarkSucceeded(ctx, ref)
	case IntentFailed:
		return st, r.MarkFailed(ctx, ref)
	}
	return st, nil
}

// HandleWebhook applies a verified processor notification. A failed
// attempt leaves the payment pending; other event types are ignored.
func (r *PaymentReconciler) HandleWebhook(ctx context.Context, ev WebhookEvent) error {
	var err error
	switch ev.Type {
	case EventIntentSucceeded:
		err = r.MarkSucceeded(ctx, ev.Ref)
	case EventIntentCanceled:
		err = r.MarkFailed(ctx, ev.Ref)
	case EventIntentAttemptFailed:
		r.log.Infof("reconcile: attempt failed on %s, payment stays pending", ev.Ref)
		monitoring.TrackWebhook(ev.Type, "attempt_failed")
		return nil
	default:
		monitoring.TrackWebhook(ev.Type, "ignored")
		return nil
	}
	monitoring.TrackWebhook(ev.Type, outcome(err))
	return err
}
