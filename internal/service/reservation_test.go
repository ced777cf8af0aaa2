package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/queue"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

func futureSession(st model.SessionType) model.Session {
	return model.Session{
		ID:             1,
		SpectacleID:    7,
		VenueID:        3,
		StartsAt:       time.Now().UTC().Add(48 * time.Hour),
		TotalCapacity:  100,
		BasePriceCents: 800,
		Type:           st,
		Status:         "SCHEDULED",
	}
}

func newMockEngine(ledger *MockLedger, bookings *MockBookings) *ReservationEngine {
	issuer := NewTicketIssuer(newMemTickets())
	return NewReservationEngine(ledger, bookings, issuer, &MockSpectacles{}, &MockVenues{}, nil)
}

func TestReserveSuccess(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	bookings.On("GetByIdempotencyKey", mock.Anything, "key-1").
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(futureSession(model.SessionPublic), nil)
	ledger.On("TryReserve", mock.Anything, uint64(1), uint32(4)).
		Return(repository.ReserveResult{Granted: true, AvailableSeats: 96}, nil)
	bookings.On("Create", mock.Anything, mock.Anything).Return(nil)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID:      1,
		UserID:         10,
		BookingType:    model.BookingIndividual,
		SeatCount:      4,
		IdempotencyKey: "key-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, uint32(4*800), b.TotalAmountCents)
	assert.NotEmpty(t, b.Reference)
	ledger.AssertExpectations(t)
	bookings.AssertExpectations(t)
}

func TestReserveInsufficientCapacity(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	bookings.On("GetByIdempotencyKey", mock.Anything, "key-2").
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(futureSession(model.SessionPublic), nil)
	ledger.On("TryReserve", mock.Anything, uint64(1), uint32(30)).
		Return(repository.ReserveResult{Granted: false, AvailableSeats: 20}, nil)

	_, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID:      1,
		UserID:         10,
		BookingType:    model.BookingIndividual,
		SeatCount:      30,
		IdempotencyKey: "key-2",
	})
	var capErr *CapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint32(20), capErr.AvailableSeats)
	bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReserveIneligibleNeverTouchesLedger(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	bookings.On("GetByIdempotencyKey", mock.Anything, "key-3").
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(futureSession(model.SessionPrivateSchool), nil)

	_, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID:      1,
		UserID:         10,
		BookingType:    model.BookingIndividual,
		SeatCount:      2,
		IdempotencyKey: "key-3",
	})
	assert.ErrorIs(t, err, ErrIneligibleBookingType)
	ledger.AssertNotCalled(t, "TryReserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveNotBookable(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	cancelled := futureSession(model.SessionPublic)
	cancelled.Status = "CANCELLED"
	bookings.On("GetByIdempotencyKey", mock.Anything, mock.Anything).
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(cancelled, nil)

	_, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 10, BookingType: model.BookingIndividual, SeatCount: 2, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, ErrSessionNotBookable)
}

func TestReserveInvalidSeatCount(t *testing.T) {
	engine := newMockEngine(new(MockLedger), new(MockBookings))

	_, err := engine.Reserve(context.Background(), ReserveRequest{SessionID: 1, SeatCount: 0})
	assert.ErrorIs(t, err, ErrInvalidSeatCount)

	_, err = engine.Reserve(context.Background(), ReserveRequest{SessionID: 1, SeatCount: MaxSeatsPerBooking + 1})
	assert.ErrorIs(t, err, ErrInvalidSeatCount)
}

func TestReserveIdempotentReplay(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	stored := model.Booking{ID: 55, Status: model.BookingPending, SeatCount: 4, IdempotencyKey: "replay"}
	bookings.On("GetByIdempotencyKey", mock.Anything, "replay").Return(stored, nil)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 10, BookingType: model.BookingIndividual, SeatCount: 4, IdempotencyKey: "replay",
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(55), b.ID)
	ledger.AssertNotCalled(t, "TryReserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveCompensatesOnCreateFailure(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	bookings.On("GetByIdempotencyKey", mock.Anything, "key-4").
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(futureSession(model.SessionPublic), nil)
	ledger.On("TryReserve", mock.Anything, uint64(1), uint32(5)).
		Return(repository.ReserveResult{Granted: true, AvailableSeats: 95}, nil)
	bookings.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	ledger.On("Release", mock.Anything, uint64(1), uint32(5)).Return(nil)

	_, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 10, BookingType: model.BookingIndividual, SeatCount: 5, IdempotencyKey: "key-4",
	})
	assert.Error(t, err)
	ledger.AssertCalled(t, "Release", mock.Anything, uint64(1), uint32(5))
}

func TestReserveRetriesTransientConflicts(t *testing.T) {
	ledger := new(MockLedger)
	bookings := new(MockBookings)
	engine := newMockEngine(ledger, bookings)

	deadlock := errors.New("Error 1213: Deadlock found when trying to get lock")
	bookings.On("GetByIdempotencyKey", mock.Anything, "key-5").
		Return(model.Booking{}, repository.ErrBookingNotFound)
	ledger.On("GetByID", mock.Anything, uint64(1)).Return(futureSession(model.SessionPublic), nil)
	ledger.On("TryReserve", mock.Anything, uint64(1), uint32(2)).
		Return(repository.ReserveResult{}, deadlock).Twice()
	ledger.On("TryReserve", mock.Anything, uint64(1), uint32(2)).
		Return(repository.ReserveResult{Granted: true, AvailableSeats: 98}, nil).Once()
	bookings.On("Create", mock.Anything, mock.Anything).Return(nil)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 10, BookingType: model.BookingIndividual, SeatCount: 2, IdempotencyKey: "key-5",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	ledger.AssertNumberOfCalls(t, "TryReserve", 3)
}

func newMemEngine(capacity uint32) (*ReservationEngine, *memLedger, *memBookings, *memTickets) {
	ledger := newMemLedger(capacity, time.Now().UTC().Add(48*time.Hour))
	bookings := newMemBookings()
	tickets := newMemTickets()
	issuer := NewTicketIssuer(tickets)
	engine := NewReservationEngine(ledger, bookings, issuer, &MockSpectacles{}, &MockVenues{}, nil)
	return engine, ledger, bookings, tickets
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	const capacity = 10
	const requests = 50

	engine, ledger, _, _ := newMemEngine(capacity)

	var wg sync.WaitGroup
	granted := make(chan model.Booking, requests)
	rejected := make(chan error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b, err := engine.Reserve(context.Background(), ReserveRequest{
				SessionID:      1,
				UserID:         uint64(n + 1),
				BookingType:    model.BookingIndividual,
				SeatCount:      1,
				IdempotencyKey: fmt.Sprintf("concurrent-%d", n),
			})
			if err != nil {
				rejected <- err
				return
			}
			granted <- b
		}(i)
	}
	wg.Wait()
	close(granted)
	close(rejected)

	assert.Len(t, granted, capacity)
	assert.Len(t, rejected, requests-capacity)
	for err := range rejected {
		var capErr *CapacityError
		assert.ErrorAs(t, err, &capErr)
	}
	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(capacity), session.ReservedCount)
}

func TestGroupBookingsAgainstFiftySeats(t *testing.T) {
	engine, _, _, _ := newMemEngine(50)

	first, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 30, IdempotencyKey: "group-a",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.BookingPending, first.Status)

	_, err = engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 2, BookingType: model.BookingIndividual, SeatCount: 30, IdempotencyKey: "group-b",
	})
	var capErr *CapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint32(20), capErr.AvailableSeats)

	second, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 2, BookingType: model.BookingIndividual, SeatCount: 20, IdempotencyKey: "group-b2",
	})
	assert.NoError(t, err)
	assert.Equal(t, uint32(20), second.SeatCount)
}

func TestConfirmPaymentIssuesTicketsOnce(t *testing.T) {
	engine, _, bookings, _ := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 3, IdempotencyKey: "pay-1",
	})
	assert.NoError(t, err)

	confirmed, tickets, err := engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)
	assert.Len(t, tickets, 3)
	for i, tk := range tickets {
		assert.Equal(t, uint32(i+1), tk.Serial)
		assert.Equal(t, model.TicketActive, tk.Status)
	}

	// Provider retries the callback; same tickets, no duplicates.
	_, replay, err := engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)
	assert.Len(t, replay, 3)
	assert.Equal(t, tickets[0].Code, replay[0].Code)

	stored, _ := bookings.GetByID(context.Background(), b.ID)
	assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
}

func TestFailPaymentReleasesSeats(t *testing.T) {
	engine, ledger, bookings, _ := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 5, IdempotencyKey: "fail-1",
	})
	assert.NoError(t, err)

	assert.NoError(t, engine.FailPayment(context.Background(), b.ID))

	stored, _ := bookings.GetByID(context.Background(), b.ID)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	assert.Equal(t, model.PaymentFailed, stored.PaymentStatus)
	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(0), session.ReservedCount)

	// Replayed callback finds nothing pending and releases nothing more.
	err = engine.FailPayment(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrBookingNotPending)
	assert.Equal(t, uint32(5), ledger.released)
}

func TestFailPaymentAfterConfirmLeavesBookingIntact(t *testing.T) {
	engine, ledger, bookings, _ := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 3, IdempotencyKey: "fail-2",
	})
	assert.NoError(t, err)
	_, _, err = engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)

	// A stale failure verdict lands after the confirmation. It must not
	// rewrite the payment record or give the seats back.
	err = engine.FailPayment(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrBookingNotPending)

	stored, _ := bookings.GetByID(context.Background(), b.ID)
	assert.Equal(t, model.BookingConfirmed, stored.Status)
	assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(3), session.ReservedCount)
	assert.Equal(t, uint32(0), ledger.released)
}

func TestConfirmPaymentReplayRepublishesEvent(t *testing.T) {
	ledger := newMemLedger(50, time.Now().UTC().Add(48*time.Hour))
	bookings := newMemBookings()
	issuer := NewTicketIssuer(newMemTickets())

	spectacles := &MockSpectacles{}
	spectacles.On("GetByID", mock.Anything, mock.Anything).Return(nil, errors.New("no spectacle"))
	venues := &MockVenues{}
	venues.On("GetByID", mock.Anything, mock.Anything).Return(nil, errors.New("no venue"))

	var published []queue.BookingConfirmedEvent
	publish := func(_ context.Context, ev queue.BookingConfirmedEvent) error {
		published = append(published, ev)
		return nil
	}
	engine := NewReservationEngine(ledger, bookings, issuer, spectacles, venues, publish)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 1, BookingType: model.BookingIndividual, SeatCount: 2, IdempotencyKey: "pub-1",
	})
	assert.NoError(t, err)

	_, _, err = engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)
	assert.Len(t, published, 1)

	// The provider retries; the replay re-emits so a publish lost by a
	// crashed first attempt is not gone for good.
	_, _, err = engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)
	assert.Len(t, published, 2)
	assert.Equal(t, published[0].BookingID, published[1].BookingID)
	assert.Equal(t, published[0].Reference, published[1].Reference)
}

func TestCancelConfirmedBookingVoidsTickets(t *testing.T) {
	engine, ledger, bookings, tickets := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 9, BookingType: model.BookingIndividual, SeatCount: 2, IdempotencyKey: "cancel-1",
	})
	assert.NoError(t, err)
	_, _, err = engine.ConfirmPayment(context.Background(), b.ID)
	assert.NoError(t, err)

	assert.NoError(t, engine.Cancel(context.Background(), b.ID, 9))

	stored, _ := bookings.GetByID(context.Background(), b.ID)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	session, _ := ledger.GetByID(context.Background(), 1)
	assert.Equal(t, uint32(0), session.ReservedCount)

	remaining, _ := tickets.ListByBooking(context.Background(), b.ID)
	for _, tk := range remaining {
		assert.Equal(t, model.TicketVoid, tk.Status)
	}
}

func TestCancelForeignBookingForbidden(t *testing.T) {
	engine, _, _, _ := newMemEngine(50)

	b, err := engine.Reserve(context.Background(), ReserveRequest{
		SessionID: 1, UserID: 9, BookingType: model.BookingIndividual, SeatCount: 2, IdempotencyKey: "cancel-2",
	})
	assert.NoError(t, err)

	err = engine.Cancel(context.Background(), b.ID, 10)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}
