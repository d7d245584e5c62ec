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
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// ReserveRequest asks for Quantity tickets of one ticket type. EventID,
// when non-zero, must be the ticket type's event.
type ReserveRequest struct {
	EventID      uint64
	TicketTypeID uint64
	Quantity     int
}

// ReservationManager creates and cancels reservations. Create and
// Cancel each run in one transaction shared with the ledger, so stock
// and reservation rows never disagree after a failure.
type ReservationManager struct {
	db           *database.DB
	ledger       *Ledger
	tickets      *repository.TicketTypeRepo
	reservations *repository.ReservationRepo
	payments     *repository.PaymentRepo
	events       *repository.EventRepo
	client       PaymentClient
	log          Logger
}

// NewReservationManager wires a manager. All repositories must share db.
// client cancels processor intents of reservations being cancelled; when
// it is nil such reservations cannot be cancelled while the intent is
// pending.
func NewReservationManager(db *database.DB, ledger *Ledger, tickets *repository.TicketTypeRepo,
	reservations *repository.ReservationRepo, payments *repository.PaymentRepo, events *repository.EventRepo,
	client PaymentClient) *ReservationManager {
	if db == nil || ledger == nil || tickets == nil || reservations == nil || payments == nil || events == nil {
		panic("nil dependency passed to NewReservationManager")
	}
	return &ReservationManager{
		db:           db,
		ledger:       ledger,
		tickets:      tickets,
		reservations: reservations,
		payments:     payments,
		events:       events,
		client:       client,
		log:          defaultLogger("reservations"),
	}
}

// SetLogger replaces the manager's logger.
func (m *ReservationManager) SetLogger(l Logger) { m.log = l }

// Create reserves tickets for a participant. It returns
// ErrInsufficientStock when fewer than Quantity tickets remain at
// commit time; nothing is written in that case.
func (m *ReservationManager) Create(ctx context.Context, who model.Identity, req ReserveRequest) (model.Reservation, error) {
	res, err := m.create(ctx, who, req)
	monitoring.TrackReservation("create", outcome(err))
	return res, err
}

func (m *ReservationManager) create(ctx context.Context, who model.Identity, req ReserveRequest) (model.Reservation, error) {
	if !who.IsParticipant() {
		return model.Reservation{}, repository.ErrForbidden
	}
	if req.Quantity <= 0 {
		return model.Reservation{}, repository.ErrInvalidQuantity
	}
	defer monitoring.ObserveTx("reserve", time.Now())

	var res model.Reservation
	err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := m.tickets.GetForUpdateTx(ctx, tx, req.TicketTypeID)
		if err != nil {
			return err
		}
		if req.EventID != 0 && t.EventID != req.EventID {
			return repository.ErrNotFound
		}
		if !HasStock(t, req.Quantity) {
			return repository.ErrInsufficientStock
		}
		res = model.Reservation{UserID: who.UserID, TicketTypeID: t.ID, Quantity: req.Quantity}
		if err := m.reservations.CreateTx(ctx, tx, &res); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return m.ledger.Reserve(ctx, tx, t.ID, req.Quantity)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// Cancel deletes an unconfirmed reservation owned by the caller and
// returns its tickets to stock. A pending processor intent is cancelled
// at the processor first; if the payer got there first the reservation
// is kept and ErrAlreadyPaid is returned.
func (m *ReservationManager) Cancel(ctx context.Context, who model.Identity, reservationID uint64) error {
	err := m.cancel(ctx, who, reservationID)
	monitoring.TrackReservation("cancel", outcome(err))
	return err
}

func (m *ReservationManager) cancel(ctx context.Context, who model.Identity, reservationID uint64) error {
	live, err := m.cancelTx(ctx, who, reservationID, "")
	if err != nil || live == "" {
		return err
	}
	// The processor is never called inside a transaction.
	if m.client == nil {
		return repository.ErrConflict
	}
	st, err := m.client.CancelIntent(ctx, live)
	if err != nil {
		return fmt.Errorf("cancel intent: %w", err)
	}
	switch st {
	case IntentSucceeded:
		return repository.ErrAlreadyPaid
	case IntentPending:
		return repository.ErrConflict
	}
	_, err = m.cancelTx(ctx, who, reservationID, live)
	return err
}

// cancelTx removes the reservation unless its payment has a pending
// intent other than cancelled, whose reference it returns instead.
func (m *ReservationManager) cancelTx(ctx context.Context, who model.Identity, reservationID uint64, cancelled string) (string, error) {
	var live string
	err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
		live = ""
		res, err := m.reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != who.UserID || !who.IsParticipant() {
			return repository.ErrForbidden
		}
		if !res.Confirmed {
			p, err := m.payments.GetByReservationTx(ctx, tx, res.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err == nil && p.Status == model.PaymentPending && p.ExternalRef != nil && *p.ExternalRef != cancelled {
				live = *p.ExternalRef
				return nil
			}
		}
		_, err = m.removeTx(ctx, tx, res)
		return err
	})
	return live, err
}

// removeTx releases and deletes a locked reservation together with its
// payment row. Paid reservations yield ErrAlreadyPaid.
func (m *ReservationManager) removeTx(ctx context.Context, tx *sql.Tx, res model.Reservation) (bool, error) {
	if res.Confirmed {
		return false, repository.ErrAlreadyPaid
	}
	p, err := m.payments.GetByReservationTx(ctx, tx, res.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return false, err
	case p.Status == model.PaymentCompleted:
		return false, repository.ErrAlreadyPaid
	}
	if err := m.ledger.Release(ctx, tx, res.TicketTypeID, res.Quantity); err != nil {
		return false, err
	}
	if err := m.payments.DeleteByReservationTx(ctx, tx, res.ID); err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	if err := m.reservations.DeleteTx(ctx, tx, res.ID); err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	return true, nil
}

// Expire releases a stale reservation regardless of owner. Confirmed
// reservations and ones whose processor intent is still pending are
// left alone; it reports whether the reservation was removed.
func (m *ReservationManager) Expire(ctx context.Context, reservationID uint64) (bool, error) {
	removed := false
	err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
		removed = false
		res, err := m.reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.Confirmed {
			return nil
		}
		p, err := m.payments.GetByReservationTx(ctx, tx, res.ID)
		if err == nil && p.Status == model.PaymentPending && p.ExternalRef != nil {
			return nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		removed, err = m.removeTx(ctx, tx, res)
		if errors.Is(err, repository.ErrAlreadyPaid) {
			return nil
		}
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if removed {
		monitoring.TrackReservation("expire", "ok")
	}
	return removed, err
}

// Get returns one of the caller's reservations.
func (m *ReservationManager) Get(ctx context.Context, who model.Identity, reservationID uint64) (model.ReservationDetail, error) {
	d, err := m.reservations.GetDetail(ctx, reservationID)
	if err != nil {
		return d, err
	}
	if d.UserID != who.UserID {
		return model.ReservationDetail{}, repository.ErrForbidden
	}
	return d, nil
}

// ListByUser returns every reservation of the caller, newest first.
func (m *ReservationManager) ListByUser(ctx context.Context, who model.Identity) ([]model.ReservationDetail, error) {
	return m.reservations.ListByUser(ctx, who.UserID, false)
}

// ListTickets returns the caller's confirmed reservations.
func (m *ReservationManager) ListTickets(ctx context.Context, who model.Identity) ([]model.ReservationDetail, error) {
	return m.reservations.ListByUser(ctx, who.UserID, true)
}

// ListByEvent returns all reservations of an event to its organizer.
func (m *ReservationManager) ListByEvent(ctx context.Context, who model.Identity, eventID uint64) ([]model.ReservationDetail, error) {
	e, err := m.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !who.IsOrganizer() || e.OrganizerID != who.UserID {
		return nil, repository.ErrForbidden
	}
	return m.reservations.ListByEvent(ctx, eventID)
}
