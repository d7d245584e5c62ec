package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// TicketTypeRepo encapsulates database operations for ticket_types.
// Stock columns are only written through DecrementStockTx and
// IncrementStockTx, which the inventory ledger wraps.
type TicketTypeRepo struct {
	db *database.DB
}

// NewTicketTypeRepo constructs a TicketTypeRepo given a DB handle.
func NewTicketTypeRepo(db *database.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

const ticketTypeColumns = `id, event_id, name, price, total_quantity, available_quantity`

func scanTicketType(sc interface{ Scan(...any) error }) (model.TicketType, error) {
	var t model.TicketType
	err := sc.Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.TotalQuantity, &t.AvailableQuantity)
	return t, err
}

// CreateTx inserts a ticket type with available_quantity equal to its
// total. The generated ID is written back into t.
func (r *TicketTypeRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.TicketType) error {
	t.AvailableQuantity = t.TotalQuantity
	id, err := r.db.Dialect.InsertTx(ctx, tx,
		`INSERT INTO ticket_types (event_id, name, price, total_quantity, available_quantity) VALUES (?, ?, ?, ?, ?)`,
		t.EventID, t.Name, t.Price.StringFixed(2), t.TotalQuantity, t.AvailableQuantity)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetByID reads a ticket type outside any transaction.
func (r *TicketTypeRepo) GetByID(ctx context.Context, id uint64) (model.TicketType, error) {
	t, err := scanTicketType(r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketType{}, ErrNotFound
	}
	return t, err
}

// GetForUpdateTx re-reads a ticket type inside tx and holds an
// exclusive lock on the row until the transaction ends.
func (r *TicketTypeRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.TicketType, error) {
	q := r.db.Dialect.Rebind(`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`) + r.db.Dialect.ForUpdate()
	t, err := scanTicketType(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketType{}, ErrNotFound
	}
	return t, err
}

// ListByEvent returns an event's ticket types ordered by price. The
// sort happens here because SQLite keeps prices as text.
func (r *TicketTypeRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.Dialect.Rebind(`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = ? ORDER BY id`), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TicketType{}
	for rows.Next() {
		t, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

// DecrementStockTx subtracts quantity from available_quantity only if
// enough stock remains. It reports whether the row was updated.
func (r *TicketTypeRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) (bool, error) {
	res, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE ticket_types SET available_quantity = available_quantity - ?
		 WHERE id = ? AND available_quantity >= ?`),
		quantity, id, quantity)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IncrementStockTx adds quantity back to available_quantity, clamped at
// total_quantity.
func (r *TicketTypeRepo) IncrementStockTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) error {
	_, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE ticket_types SET available_quantity =
		   CASE WHEN available_quantity + ? > total_quantity THEN total_quantity ELSE available_quantity + ? END
		 WHERE id = ?`),
		quantity, quantity, id)
	return err
}
