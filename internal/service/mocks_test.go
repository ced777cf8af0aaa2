package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

// ----- testify mocks -----

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *MockLedger) TryReserve(ctx context.Context, sessionID uint64, seatCount uint32) (repository.ReserveResult, error) {
	args := m.Called(ctx, sessionID, seatCount)
	return args.Get(0).(repository.ReserveResult), args.Error(1)
}

func (m *MockLedger) Release(ctx context.Context, sessionID uint64, seatCount uint32) error {
	args := m.Called(ctx, sessionID, seatCount)
	return args.Error(0)
}

type MockBookings struct {
	mock.Mock
}

func (m *MockBookings) Create(ctx context.Context, b *model.Booking) error {
	args := m.Called(ctx, b)
	if args.Error(0) == nil && b.ID == 0 {
		b.ID = 999 // simulate DB insert
	}
	return args.Error(0)
}

func (m *MockBookings) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Booking), args.Error(1)
}

func (m *MockBookings) GetByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(model.Booking), args.Error(1)
}

func (m *MockBookings) UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookings) SetPaymentStatus(ctx context.Context, id uint64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockBookings) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

type MockTickets struct {
	mock.Mock
}

func (m *MockTickets) CreateAll(ctx context.Context, tickets []model.Ticket) error {
	args := m.Called(ctx, tickets)
	return args.Error(0)
}

func (m *MockTickets) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Ticket), args.Error(1)
}

func (m *MockTickets) VoidByBooking(ctx context.Context, bookingID uint64) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

type MockSpectacles struct {
	mock.Mock
}

func (m *MockSpectacles) GetByID(ctx context.Context, id uint64) (*model.Spectacle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Spectacle), args.Error(1)
}

type MockVenues struct {
	mock.Mock
}

func (m *MockVenues) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Venue), args.Error(1)
}

// ----- in-memory fakes for concurrency tests -----

// memLedger reproduces the conditional-update semantics of the SQL ledger
// under a mutex so many goroutines can hammer it.
type memLedger struct {
	mu       sync.Mutex
	session  model.Session
	released uint32
}

func newMemLedger(capacity uint32, startsAt time.Time) *memLedger {
	return &memLedger{session: model.Session{
		ID:             1,
		TotalCapacity:  capacity,
		BasePriceCents: 800,
		Type:           model.SessionPublic,
		Status:         "SCHEDULED",
		StartsAt:       startsAt,
	}}
}

func (l *memLedger) GetByID(_ context.Context, _ uint64) (model.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session, nil
}

func (l *memLedger) TryReserve(_ context.Context, _ uint64, seatCount uint32) (repository.ReserveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.ReservedCount+seatCount <= l.session.TotalCapacity {
		l.session.ReservedCount += seatCount
		return repository.ReserveResult{Granted: true, AvailableSeats: l.session.AvailableSeats()}, nil
	}
	return repository.ReserveResult{Granted: false, AvailableSeats: l.session.AvailableSeats()}, nil
}

func (l *memLedger) Release(_ context.Context, _ uint64, seatCount uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.ReservedCount >= seatCount {
		l.session.ReservedCount -= seatCount
	} else {
		l.session.ReservedCount = 0
	}
	l.released += seatCount
	return nil
}

// memBookings is a thread-safe BookingStore for the concurrency tests.
type memBookings struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Booking
	byKey  map[string]uint64
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[uint64]model.Booking{}, byKey: map[string]uint64{}}
}

func (s *memBookings) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.IdempotencyKey != "" {
		if _, dup := s.byKey[b.IdempotencyKey]; dup {
			return repository.ErrDuplicateKey
		}
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	s.rows[b.ID] = *b
	if b.IdempotencyKey != "" {
		s.byKey[b.IdempotencyKey] = b.ID
	}
	return nil
}

func (s *memBookings) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (s *memBookings) GetByIdempotencyKey(_ context.Context, key string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return s.rows[id], nil
}

func (s *memBookings) UpdateStatus(_ context.Context, id uint64, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	s.rows[id] = b
	return true, nil
}

func (s *memBookings) SetPaymentStatus(_ context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.rows[id]; ok {
		b.PaymentStatus = status
		s.rows[id] = b
	}
	return nil
}

func (s *memBookings) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.rows {
		if b.Status == model.BookingPending && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// memTickets is a thread-safe TicketStore honoring the unique index on
// (booking_id, serial).
type memTickets struct {
	mu   sync.Mutex
	rows map[uint64][]model.Ticket
}

func newMemTickets() *memTickets {
	return &memTickets{rows: map[uint64][]model.Ticket{}}
}

func (s *memTickets) CreateAll(_ context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows[tickets[0].BookingID]) > 0 {
		return repository.ErrDuplicateKey
	}
	s.rows[tickets[0].BookingID] = append([]model.Ticket(nil), tickets...)
	return nil
}

func (s *memTickets) ListByBooking(_ context.Context, bookingID uint64) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Ticket(nil), s.rows[bookingID]...), nil
}

func (s *memTickets) VoidByBooking(_ context.Context, bookingID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows[bookingID] {
		if s.rows[bookingID][i].Status == model.TicketActive {
			s.rows[bookingID][i].Status = model.TicketVoid
		}
	}
	return nil
}
