package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// ReservationRepo provides data access for reservations. Writes happen
// inside transactions owned by the reservation manager and the payment
// reconciler; the list queries run on the pool and join in the ticket
// type, event and payment so that callers get prices and titles in one
// round trip.
type ReservationRepo struct {
	db *database.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *database.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, ticket_type_id, quantity, confirmed, created_at`

func scanReservation(sc interface{ Scan(...any) error }) (model.Reservation, error) {
	var r model.Reservation
	err := sc.Scan(&r.ID, &r.UserID, &r.TicketTypeID, &r.Quantity, &r.Confirmed, &r.CreatedAt)
	return r, err
}

// CreateTx inserts a new, unconfirmed reservation within the scope of
// an existing transaction and populates its ID and CreatedAt.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	res.Confirmed = false
	res.CreatedAt = utcNow()
	id, err := r.db.Dialect.InsertTx(ctx, tx,
		`INSERT INTO reservations (user_id, ticket_type_id, quantity, confirmed, created_at) VALUES (?, ?, ?, ?, ?)`,
		res.UserID, res.TicketTypeID, res.Quantity, false, res.CreatedAt)
	if err != nil {
		return err
	}
	res.ID = id
	return nil
}

// GetForUpdateTx loads a reservation and locks its row for the rest of
// the transaction. Missing rows yield ErrNotFound.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	q := r.db.Dialect.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`) + r.db.Dialect.ForUpdate()
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// ConfirmTx flips confirmed from false to true. It reports false when
// the reservation was already confirmed or no longer exists.
func (r *ReservationRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		r.db.Dialect.Rebind(`UPDATE reservations SET confirmed = ? WHERE id = ? AND confirmed = ?`),
		true, id, false)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteTx removes a reservation row. Its payment row, if any, must be
// removed first by the caller.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(`DELETE FROM reservations WHERE id = ?`), id)
	return err
}

// ListExpired returns ids of unconfirmed reservations created before
// cutoff that can be released: no payment, a failed payment, or a
// pending payment without a processor intent. Reservations with an
// intent in flight are left out so they never fill the batch. At most
// limit ids are returned, oldest first.
func (r *ReservationRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(
		`SELECT r.id FROM reservations r
		 LEFT JOIN payments p ON p.reservation_id = r.id
		 WHERE r.confirmed = ? AND r.created_at < ?
		   AND (p.id IS NULL OR p.status = ? OR (p.status = ? AND p.external_ref IS NULL))
		 ORDER BY r.created_at, r.id LIMIT ?`),
		false, cutoff.UTC().Truncate(time.Second),
		string(model.PaymentFailed), string(model.PaymentPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const reservationDetailQuery = `SELECT r.id, r.user_id, r.ticket_type_id, r.quantity, r.confirmed, r.created_at,
	t.name, t.price, e.id, e.title, e.start_date, p.status
	FROM reservations r
	JOIN ticket_types t ON t.id = r.ticket_type_id
	JOIN events e ON e.id = t.event_id
	LEFT JOIN payments p ON p.reservation_id = r.id`

func scanReservationDetail(sc interface{ Scan(...any) error }) (model.ReservationDetail, error) {
	var (
		d      model.ReservationDetail
		status sql.NullString
	)
	err := sc.Scan(&d.ID, &d.UserID, &d.TicketTypeID, &d.Quantity, &d.Confirmed, &d.CreatedAt,
		&d.TicketTypeName, &d.UnitPrice, &d.EventID, &d.EventTitle, &d.EventStart, &status)
	if err != nil {
		return d, err
	}
	d.TotalPrice = model.TotalPrice(d.UnitPrice, d.Quantity)
	if status.Valid {
		s := model.PaymentStatus(status.String)
		d.PaymentStatus = &s
	}
	return d, nil
}

// GetDetail returns one reservation with ticket type, event and payment
// status. Missing rows yield ErrNotFound.
func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (model.ReservationDetail, error) {
	d, err := scanReservationDetail(r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(reservationDetailQuery+` WHERE r.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// ListByUser returns a participant's reservations, newest first. With
// confirmedOnly set it returns only paid reservations, i.e. tickets.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, confirmedOnly bool) ([]model.ReservationDetail, error) {
	q := reservationDetailQuery + ` WHERE r.user_id = ?`
	args := []any{userID}
	if confirmedOnly {
		q += ` AND r.confirmed = ?`
		args = append(args, true)
	}
	return r.listDetails(ctx, q+` ORDER BY r.created_at DESC, r.id DESC`, args...)
}

// ListByEvent returns every reservation on any ticket type of an event.
func (r *ReservationRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.ReservationDetail, error) {
	return r.listDetails(ctx, reservationDetailQuery+` WHERE e.id = ? ORDER BY r.created_at DESC, r.id DESC`, eventID)
}

func (r *ReservationRepo) listDetails(ctx context.Context, q string, args ...any) ([]model.ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationDetail{}
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
