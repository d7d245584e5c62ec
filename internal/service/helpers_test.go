package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationConfirmedEvent
}

func (p *recordingPublisher) PublishReservationConfirmed(_ context.Context, ev queue.ReservationConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []queue.ReservationConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationConfirmedEvent(nil), p.events...)
}

type testEnv struct {
	db           *database.DB
	tickets      *repository.TicketTypeRepo
	reservations *repository.ReservationRepo
	payments     *repository.PaymentRepo
	events       *repository.EventRepo
	ledger       *Ledger
	manager      *ReservationManager
	reconciler   *PaymentReconciler
	catalog      *Catalog
	processor    *SandboxClient
	publisher    *recordingPublisher
}

var (
	organizer = model.Identity{UserID: 1, Role: model.RoleOrganizer}
	alice     = model.Identity{UserID: 10, Role: model.RoleParticipant}
	bob       = model.Identity{UserID: 11, Role: model.RoleParticipant}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "tickets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	env := &testEnv{
		db:           db,
		tickets:      repository.NewTicketTypeRepo(db),
		reservations: repository.NewReservationRepo(db),
		payments:     repository.NewPaymentRepo(db),
		events:       repository.NewEventRepo(db),
		processor:    NewSandboxClient(),
		publisher:    &recordingPublisher{},
	}
	env.ledger = NewLedger(env.tickets)
	env.manager = NewReservationManager(db, env.ledger, env.tickets, env.reservations, env.payments, env.events, env.processor)
	env.reconciler = NewPaymentReconciler(db, env.reservations, env.tickets, env.payments, env.processor, env.publisher, "ron")
	env.catalog = NewCatalog(db, env.events, env.tickets)
	return env
}

// seedEvent creates an event with one ticket type per quantity, priced
// 50.00, 75.00, ...
func (env *testEnv) seedEvent(t *testing.T, quantities ...int) model.Event {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	in := EventInput{
		Title:     "Concert",
		Location:  "Cluj",
		StartDate: start,
		EndDate:   start.Add(3 * time.Hour),
	}
	for i, q := range quantities {
		in.TicketTypes = append(in.TicketTypes, TicketTypeInput{
			Name:     []string{"General", "VIP", "Backstage"}[i%3],
			Price:    decimal.NewFromInt(50 + int64(i)*25),
			Quantity: q,
		})
	}
	e, err := env.catalog.CreateEvent(context.Background(), organizer, in)
	require.NoError(t, err)
	return e
}

func (env *testEnv) available(t *testing.T, ticketTypeID uint64) int {
	t.Helper()
	tt, err := env.tickets.GetByID(context.Background(), ticketTypeID)
	require.NoError(t, err)
	return tt.AvailableQuantity
}

// paid reserves and pays for quantity tickets and returns the reservation.
func (env *testEnv) paid(t *testing.T, who model.Identity, ticketTypeID uint64, quantity int) model.Reservation {
	t.Helper()
	ctx := context.Background()
	res, err := env.manager.Create(ctx, who, ReserveRequest{TicketTypeID: ticketTypeID, Quantity: quantity})
	require.NoError(t, err)
	p, err := env.reconciler.OpenPayment(ctx, who, res.ID)
	require.NoError(t, err)
	require.NoError(t, env.reconciler.MarkSucceeded(ctx, *p.ExternalRef))
	return res
}
