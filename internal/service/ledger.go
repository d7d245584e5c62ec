package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// Ledger owns the stock counters of ticket types. Every change goes
// through Reserve or Release inside a caller-owned transaction.
type Ledger struct {
	tickets *repository.TicketTypeRepo
}

// NewLedger returns a ledger over the ticket type repository.
func NewLedger(tickets *repository.TicketTypeRepo) *Ledger {
	return &Ledger{tickets: tickets}
}

// HasStock reports whether quantity tickets could be taken from t.
func HasStock(t model.TicketType, quantity int) bool {
	return quantity > 0 && t.AvailableQuantity >= quantity
}

// Reserve takes quantity tickets from the ticket type. The row is
// locked and re-read, then decremented with a guarded update, so two
// transactions racing for the last unit cannot both succeed.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, ticketTypeID uint64, quantity int) error {
	if quantity <= 0 {
		return repository.ErrInvalidQuantity
	}
	t, err := l.tickets.GetForUpdateTx(ctx, tx, ticketTypeID)
	if err != nil {
		return err
	}
	if !HasStock(t, quantity) {
		return repository.ErrInsufficientStock
	}
	ok, err := l.tickets.DecrementStockTx(ctx, tx, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("ledger: decrement stock: %w", err)
	}
	if !ok {
		return repository.ErrInsufficientStock
	}
	return nil
}

// Release returns quantity tickets to the ticket type, never raising
// available stock above the total. Non-positive quantities are ignored.
func (l *Ledger) Release(ctx context.Context, tx *sql.Tx, ticketTypeID uint64, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	if err := l.tickets.IncrementStockTx(ctx, tx, ticketTypeID, quantity); err != nil {
		return fmt.Errorf("ledger: increment stock: %w", err)
	}
	return nil
}
