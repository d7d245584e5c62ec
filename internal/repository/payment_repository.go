package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// PaymentRepo persists payments. A payment row is unique per
// reservation and, once a processor intent exists, per external
// reference. Status transitions are compare-and-set updates so that a
// terminal status is never overwritten.
type PaymentRepo struct {
	db *database.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *database.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, amount, currency, external_ref, client_secret, status, created_at, updated_at`

func scanPayment(sc interface{ Scan(...any) error }) (model.Payment, error) {
	var (
		p           model.Payment
		ref, secret sql.NullString
		status      string
	)
	if err := sc.Scan(&p.ID, &p.ReservationID, &p.Amount, &p.Currency, &ref, &secret, &status,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if ref.Valid {
		p.ExternalRef = &ref.String
	}
	if secret.Valid {
		p.ClientSecret = &secret.String
	}
	p.Status = model.PaymentStatus(status)
	return p, nil
}

// CreateTx inserts a pending payment. A concurrent insert for the same
// reservation fails with a unique violation (see database.IsUniqueViolation).
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	now := utcNow()
	p.Status = model.PaymentPending
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := r.db.Dialect.InsertTx(ctx, tx,
		`INSERT INTO payments (reservation_id, amount, currency, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ReservationID, p.Amount.StringFixed(2), p.Currency, string(p.Status), now, now)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetByReservationTx returns the payment of a reservation, locked.
func (r *PaymentRepo) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (model.Payment, error) {
	q := r.db.Dialect.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ?`) + r.db.Dialect.ForUpdate()
	p, err := scanPayment(tx.QueryRowContext(ctx, q, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	return p, err
}

// GetForUpdateTx returns a payment by id, locked.
func (r *PaymentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Payment, error) {
	q := r.db.Dialect.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`) + r.db.Dialect.ForUpdate()
	p, err := scanPayment(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	return p, err
}

// GetByID reads a payment without locking.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	return p, err
}

// GetByExternalRef reads a payment by processor reference without
// locking. Reconciliation uses it to learn which reservation to lock
// first.
func (r *PaymentRepo) GetByExternalRef(ctx context.Context, ref string) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE external_ref = ?`), ref))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	return p, err
}

// AttachIntent stores the processor reference and client secret on a
// payment that has none yet. It reports false when another caller
// attached an intent first.
func (r *PaymentRepo) AttachIntent(ctx context.Context, id uint64, ref, clientSecret string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE payments SET external_ref = ?, client_secret = ?, updated_at = ?
		 WHERE id = ? AND external_ref IS NULL`),
		ref, clientSecret, utcNow(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// TransitionTx moves a payment from one status to another. It reports
// false, without error, when the payment is not in the from status.
func (r *PaymentRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.PaymentStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), utcNow(), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteByReservationTx removes the payment row of a reservation, if any.
func (r *PaymentRepo) DeleteByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	_, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(`DELETE FROM payments WHERE reservation_id = ?`), reservationID)
	return err
}

// ListStaleIntents returns the processor references of pending
// payments whose unconfirmed reservation was created before cutoff.
// These are checkouts the payer abandoned after the intent was made.
func (r *PaymentRepo) ListStaleIntents(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(
		`SELECT p.external_ref FROM payments p
		 JOIN reservations r ON r.id = p.reservation_id
		 WHERE r.confirmed = ? AND r.created_at < ? AND p.status = ? AND p.external_ref IS NOT NULL
		 ORDER BY r.created_at, r.id LIMIT ?`),
		false, cutoff.UTC().Truncate(time.Second), string(model.PaymentPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
