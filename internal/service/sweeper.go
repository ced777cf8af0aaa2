package service

import (
	"context"
	"log"
	"time"
)

// sweepBatchLimit bounds one sweep pass so a large backlog is worked off in
// chunks instead of one long scan.
const sweepBatchLimit = 100

// Sweeper periodically cancels PENDING bookings whose payment window has
// lapsed and returns their seats to the ledger. It runs as a background
// goroutine next to the HTTP server, in the same spirit as the queue
// consumer.
type Sweeper struct {
	engine   *ReservationEngine
	window   time.Duration
	interval time.Duration
}

// NewSweeper builds a sweeper over the engine. window is how long a PENDING
// booking may hold its seats, interval how often expired bookings are
// collected.
func NewSweeper(engine *ReservationEngine, window, interval time.Duration) *Sweeper {
	return &Sweeper{engine: engine, window: window, interval: interval}
}

// Run loops until ctx is cancelled. Sweep errors are logged and the loop
// continues; a broken database connection must not kill the goroutine while
// the pool can still recover.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.engine.SweepExpired(ctx, s.window, sweepBatchLimit)
			if err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("sweeper: cancelled %d expired bookings", swept)
			}
		}
	}
}
