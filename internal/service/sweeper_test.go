package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

func TestSweepExpiredCancelsAndReleases(t *testing.T) {
	engine, ledger, bookings, _ := newMemEngine(50)

	stale, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 10, IdempotencyKey: "stale",
	})
	assert.NoError(t, err)
	fresh, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 2, BookingType: model.BookingIndividual, SeatCount: 5, IdempotencyKey: "fresh",
	})
	assert.NoError(t, err)

	// Age the first booking past the payment window.
	bookings.mu.Lock()
	b := bookings.rows[stale.ID]
	b.CreatedAt = time.Now().UTC().Add(-time.Hour)
	bookings.rows[stale.ID] = b
	bookings.mu.Unlock()

	swept, err := engine.SweepExpired(context.Background(), 30*time.Minute, 100)
	assert.NoError(t, err)
	assert.Equal(t, 1, swept)

	cancelled, _ := bookings.GetByID(context.Background(), stale.ID)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	kept, _ := bookings.GetByID(context.Background(), fresh.ID)
	assert.Equal(t, model.BookingPending, kept.Status)

	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(5), session.ReservedCount, "only the stale booking's seats return")
}

func TestSweepSkipsBookingsConfirmedMeanwhile(t *testing.T) {
	engine, ledger, bookings, _ := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 4, IdempotencyKey: "late-pay",
	})
	assert.NoError(t, err)

	bookings.mu.Lock()
	row := bookings.rows[b.ID]
	row.CreatedAt = time.Now().UTC().Add(-time.Hour)
	bookings.rows[b.ID] = row
	bookings.mu.Unlock()

	// Payment lands just before the sweep runs.
	_, _, err = engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)

	swept, err := engine.SweepExpired(context.Background(), 30*time.Minute, 100)
	assert.NoError(t, err)
	assert.Equal(t, 0, swept)

	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(4), session.ReservedCount, "confirmed seats stay reserved")
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
	engine, _, _, _ := newMemEngine(50)
	sweeper := NewSweeper(engine, 30*time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
