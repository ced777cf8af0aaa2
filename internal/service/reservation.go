package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/queue"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

var (
	// ErrSessionNotBookable is returned for sessions that are cancelled,
	// finished or already started.
	ErrSessionNotBookable = errors.New("session is not open for booking")

	// ErrIneligibleBookingType is returned when the booker's category does
	// not match a restricted session. The ledger is never touched in this
	// case.
	ErrIneligibleBookingType = errors.New("booking type not eligible for this session")

	// ErrInvalidSeatCount is returned for a zero or oversized seat count.
	ErrInvalidSeatCount = errors.New("invalid seat count")

	// ErrBookingNotPending is returned when a payment verdict arrives for a
	// booking that already left the PENDING state.
	ErrBookingNotPending = errors.New("booking is not pending")
)

// CapacityError reports a reservation rejected for lack of seats. It carries
// the seat count still available at rejection time so the client can offer a
// smaller booking.
type CapacityError struct {
	AvailableSeats uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough seats available (%d left)", e.AvailableSeats)
}

// MaxSeatsPerBooking caps a single reservation. School groups are the
// largest real bookers and stay well under this.
const MaxSeatsPerBooking = 150

// transientAttempts bounds the retry loop around ledger writes hit by a
// deadlock or lock wait timeout.
const transientAttempts = 3

// ReservationEngine owns the booking lifecycle: seat reservation against the
// session ledger, payment verdicts, confirmation with ticket issuance, and
// cancellation with seat release. All capacity movement goes through the
// ledger's conditional updates; the engine sequences them and attaches the
// compensating release wherever a later step can fail.
type ReservationEngine struct {
	ledger     SessionLedger
	bookings   BookingStore
	issuer     *TicketIssuer
	spectacles SpectacleReader
	venues     VenueReader
	publish    EventPublisher
	now        func() time.Time
}

// NewReservationEngine wires the engine. publish may be nil when no broker
// is configured; confirmations then skip event emission.
func NewReservationEngine(
	ledger SessionLedger,
	bookings BookingStore,
	issuer *TicketIssuer,
	spectacles SpectacleReader,
	venues VenueReader,
	publish EventPublisher,
) *ReservationEngine {
	return &ReservationEngine{
		ledger:     ledger,
		bookings:   bookings,
		issuer:     issuer,
		spectacles: spectacles,
		venues:     venues,
		publish:    publish,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ReserveRequest carries the validated input of one reservation attempt.
// IdempotencyKey is chosen by the client; retrying with the same key returns
// the booking created by the first attempt instead of debiting seats again.
type ReserveRequest struct {
	SessionID      uint64
	UserID         uint64
	BookingType    model.BookingType
	SeatCount      uint32
	IdempotencyKey string
}

// Reserve runs the full reservation sequence: validation, eligibility, the
// atomic ledger debit, then booking creation in PENDING. If the booking row
// cannot be created after the debit succeeded, the seats are released before
// the error is returned so the ledger never leaks capacity.
func (e *ReservationEngine) Reserve(ctx context.Context, req ReserveRequest) (model.Booking, error) {
	if req.SeatCount == 0 || req.SeatCount > MaxSeatsPerBooking {
		return model.Booking{}, ErrInvalidSeatCount
	}

	// Idempotent replay: a key seen before short-circuits to the stored
	// booking, whatever state it has reached since.
	if req.IdempotencyKey != "" {
		prior, err := e.bookings.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return prior, nil
		}
		if !errors.Is(err, repository.ErrBookingNotFound) {
			return model.Booking{}, err
		}
	}

	session, err := e.ledger.GetByID(ctx, req.SessionID)
	if err != nil {
		return model.Booking{}, err
	}
	if !session.Bookable(e.now()) {
		return model.Booking{}, ErrSessionNotBookable
	}
	if !req.BookingType.EligibleFor(session.Type) {
		return model.Booking{}, ErrIneligibleBookingType
	}

	res, err := e.tryReserveRetrying(ctx, req.SessionID, req.SeatCount)
	if err != nil {
		return model.Booking{}, err
	}
	if !res.Granted {
		return model.Booking{}, &CapacityError{AvailableSeats: res.AvailableSeats}
	}

	booking := model.Booking{
		Reference:        uuid.NewString(),
		SessionID:        req.SessionID,
		UserID:           req.UserID,
		Type:             req.BookingType,
		SeatCount:        req.SeatCount,
		Status:           model.BookingPending,
		PaymentStatus:    model.PaymentPending,
		TotalAmountCents: req.SeatCount * session.BasePriceCents,
		IdempotencyKey:   req.IdempotencyKey,
	}
	if err := e.bookings.Create(ctx, &booking); err != nil {
		// Another request with the same key slipped in between the replay
		// check and the insert. Give the seats back and hand out theirs.
		if errors.Is(err, repository.ErrDuplicateKey) && req.IdempotencyKey != "" {
			e.releaseLogged(ctx, req.SessionID, req.SeatCount)
			return e.bookings.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		e.releaseLogged(ctx, req.SessionID, req.SeatCount)
		return model.Booking{}, err
	}
	return booking, nil
}

// ConfirmPayment handles a successful payment callback: it records the
// verdict, transitions PENDING to CONFIRMED, issues the tickets and emits
// the confirmation event. Replays of the callback are absorbed: a booking
// already confirmed returns its existing tickets.
func (e *ReservationEngine) ConfirmPayment(ctx context.Context, bookingID uint64) (model.Booking, []model.Ticket, error) {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, nil, err
	}

	won, err := e.bookings.UpdateStatus(ctx, bookingID, model.BookingPending, model.BookingConfirmed)
	if err != nil {
		return model.Booking{}, nil, err
	}
	if !won {
		// Reload: the status seen above may predate the racing transition.
		booking, err = e.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return model.Booking{}, nil, err
		}
		if booking.Status == model.BookingConfirmed {
			tickets, err := e.issuer.Issue(ctx, booking)
			if err != nil {
				return model.Booking{}, nil, err
			}
			// Re-emit: the winning attempt may have died before its publish
			// went out. The audit consumer tolerates a duplicate line.
			e.publishConfirmed(ctx, booking)
			return booking, tickets, nil
		}
		// Cancelled meanwhile, most likely by the payment-window sweeper.
		// The money is recorded but the seats are gone.
		if err := e.bookings.SetPaymentStatus(ctx, bookingID, model.PaymentPaid); err != nil {
			log.Printf("reservation: record late payment for booking %d: %v", bookingID, err)
		}
		return model.Booking{}, nil, ErrBookingNotPending
	}

	if err := e.bookings.SetPaymentStatus(ctx, bookingID, model.PaymentPaid); err != nil {
		return model.Booking{}, nil, err
	}
	booking.Status = model.BookingConfirmed
	booking.PaymentStatus = model.PaymentPaid

	tickets, err := e.issuer.Issue(ctx, booking)
	if err != nil {
		return model.Booking{}, nil, err
	}

	e.publishConfirmed(ctx, booking)
	return booking, tickets, nil
}

// FailPayment handles a failed payment callback: the booking is cancelled
// and its seats go back to the ledger. Only the transition owner records the
// verdict and releases, so a replayed or out-of-order callback never touches
// a booking that already left PENDING.
func (e *ReservationEngine) FailPayment(ctx context.Context, bookingID uint64) error {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	won, err := e.bookings.UpdateStatus(ctx, bookingID, model.BookingPending, model.BookingCancelled)
	if err != nil {
		return err
	}
	if !won {
		return ErrBookingNotPending
	}
	if err := e.bookings.SetPaymentStatus(ctx, bookingID, model.PaymentFailed); err != nil {
		// The cancellation is durable; the seats still have to come back.
		log.Printf("reservation: record failed payment for booking %d: %v", bookingID, err)
	}
	e.releaseLogged(ctx, booking.SessionID, booking.SeatCount)
	return nil
}

// Cancel cancels a booking on the owner's request. Pending and confirmed
// bookings both cancel through the same compare-and-set, so the seat release
// and ticket voiding run exactly once even under concurrent cancellation.
func (e *ReservationEngine) Cancel(ctx context.Context, bookingID, userID uint64) error {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return repository.ErrForbidden
	}
	if booking.Status == model.BookingCancelled {
		return nil
	}

	session, err := e.ledger.GetByID(ctx, booking.SessionID)
	if err == nil && !e.now().Before(session.StartsAt) {
		return repository.ErrConflict // session already started
	}

	won, err := e.bookings.UpdateStatus(ctx, bookingID, booking.Status, model.BookingCancelled)
	if err != nil {
		return err
	}
	if !won {
		// Lost the race; the other transition owns the side effects.
		return nil
	}
	e.releaseLogged(ctx, booking.SessionID, booking.SeatCount)
	if booking.Status == model.BookingConfirmed {
		if err := e.issuer.Void(ctx, bookingID); err != nil {
			log.Printf("reservation: void tickets for booking %d: %v", bookingID, err)
		}
	}
	return nil
}

// SweepExpired cancels PENDING bookings older than the payment window and
// credits their seats back. Returns how many bookings were swept.
func (e *ReservationEngine) SweepExpired(ctx context.Context, window time.Duration, limit int) (int, error) {
	cutoff := e.now().Add(-window)
	expired, err := e.bookings.ListExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, b := range expired {
		won, err := e.bookings.UpdateStatus(ctx, b.ID, model.BookingPending, model.BookingCancelled)
		if err != nil {
			log.Printf("sweeper: cancel booking %d: %v", b.ID, err)
			continue
		}
		if !won {
			continue // confirmed or cancelled since the listing
		}
		e.releaseLogged(ctx, b.SessionID, b.SeatCount)
		swept++
	}
	return swept, nil
}

// tryReserveRetrying wraps the ledger debit with a bounded retry on
// transient storage conflicts. Each attempt is a single conditional update,
// so retrying after a deadlock abort cannot double-debit.
func (e *ReservationEngine) tryReserveRetrying(ctx context.Context, sessionID uint64, seatCount uint32) (repository.ReserveResult, error) {
	var res repository.ReserveResult
	var err error
	for attempt := 0; attempt < transientAttempts; attempt++ {
		res, err = e.ledger.TryReserve(ctx, sessionID, seatCount)
		if err == nil || !repository.IsTransient(err) {
			return res, err
		}
		select {
		case <-ctx.Done():
			return repository.ReserveResult{}, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	return res, err
}

// releaseLogged credits seats back and logs a failure instead of propagating
// it; the sweeper will not re-release (releases are tied to transitions, not
// to state), so a failed release is surfaced loudly for the operator.
func (e *ReservationEngine) releaseLogged(ctx context.Context, sessionID uint64, seatCount uint32) {
	if err := e.ledger.Release(ctx, sessionID, seatCount); err != nil {
		log.Printf("reservation: release %d seats on session %d failed: %v", seatCount, sessionID, err)
	}
}

// publishConfirmed enriches and emits the booking.confirmed event. Failures
// are logged only; the confirmation is already durable.
func (e *ReservationEngine) publishConfirmed(ctx context.Context, booking model.Booking) {
	if e.publish == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:        booking.ID,
		Reference:        booking.Reference,
		UserID:           booking.UserID,
		SessionID:        booking.SessionID,
		BookingType:      string(booking.Type),
		SeatCount:        booking.SeatCount,
		TotalAmountCents: booking.TotalAmountCents,
		ConfirmedAt:      e.now().Format(time.RFC3339),
	}
	if session, err := e.ledger.GetByID(ctx, booking.SessionID); err == nil {
		ev.StartsAt = session.StartsAt.Format(time.RFC3339)
		if sp, err := e.spectacles.GetByID(ctx, session.SpectacleID); err == nil {
			ev.SpectacleTitle = sp.Title
		}
		if v, err := e.venues.GetByID(ctx, session.VenueID); err == nil {
			ev.VenueName = v.Name
			ev.VenueCity = v.City
		}
	}
	if err := e.publish(ctx, ev); err != nil {
		log.Printf("reservation: publish confirmation for booking %d: %v", booking.ID, err)
	}
}
