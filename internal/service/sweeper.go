package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/ticket-sales/internal/repository"
)

const sweepBatch = 100

// Sweeper periodically expires unconfirmed reservations older than a
// TTL, returning their tickets to stock. Stale checkouts that already
// have a processor intent are cancelled at the processor first, so an
// abandoned payment page does not hold tickets forever.
type Sweeper struct {
	manager    *ReservationManager
	reconciler *PaymentReconciler
	ttl        time.Duration
	interval   time.Duration
}

// NewSweeper returns a sweeper for manager. A nil reconciler leaves
// reservations with an intent in flight alone. An interval of zero
// defaults to a quarter of the TTL.
func NewSweeper(manager *ReservationManager, reconciler *PaymentReconciler, ttl, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = ttl / 4
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Sweeper{manager: manager, reconciler: reconciler, ttl: ttl, interval: interval}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("reservation-sweeper: started ttl=%s interval=%s", s.ttl, s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("reservation-sweeper: stopped")
			return
		case now := <-ticker.C:
			n, err := s.SweepOnce(ctx, now)
			if err != nil {
				log.Printf("reservation-sweeper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reservation-sweeper: expired %d reservations", n)
			}
		}
	}
}

// SweepOnce cancels stale intents, then expires one batch of
// reservations created before now-ttl and returns how many were
// removed.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.ttl)
	if err := s.abandonIntents(ctx, cutoff); err != nil {
		return 0, err
	}
	ids, err := s.manager.reservations.ListExpired(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		ok, err := s.manager.Expire(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// abandonIntents cancels one batch of stale intents. A processor error
// on one intent is logged and the rest are still tried.
func (s *Sweeper) abandonIntents(ctx context.Context, cutoff time.Time) error {
	if s.reconciler == nil {
		return nil
	}
	refs, err := s.manager.payments.ListStaleIntents(ctx, cutoff, sweepBatch)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		st, err := s.reconciler.AbandonIntent(ctx, ref)
		if err != nil && !errors.Is(err, repository.ErrUnknownPayment) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("reservation-sweeper: cancel intent %s: %v", ref, err)
			continue
		}
		if st == IntentSucceeded {
			log.Printf("reservation-sweeper: intent %s was paid before it could be cancelled", ref)
		}
	}
	return nil
}
