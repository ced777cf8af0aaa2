package model

import "time"

// BookingType is the closed set of booker categories.  The values mirror the
// registration categories of the theatre network; anything outside this set
// is rejected at the API boundary instead of silently falling through.
type BookingType string

const (
	BookingIndividual     BookingType = "INDIVIDUAL"
	BookingTeacherPrivate BookingType = "TEACHER_PRIVATE"
	BookingTeacherPublic  BookingType = "TEACHER_PUBLIC"
	BookingAssociation    BookingType = "ASSOCIATION"
)

// ParseBookingType validates a raw booking type value.
func ParseBookingType(raw string) (BookingType, bool) {
	switch BookingType(raw) {
	case BookingIndividual, BookingTeacherPrivate, BookingTeacherPublic, BookingAssociation:
		return BookingType(raw), true
	}
	return "", false
}

// EligibleFor reports whether this booking category may book a session of the
// given type.  PUBLIC sessions are open to everyone; restricted sessions
// accept only their matching category.
func (t BookingType) EligibleFor(st SessionType) bool {
	switch st {
	case SessionPublic:
		return true
	case SessionPrivateSchool:
		return t == BookingTeacherPrivate
	case SessionPublicSchool:
		return t == BookingTeacherPublic
	case SessionAssociation:
		return t == BookingAssociation
	}
	return false
}

// Booking statuses.  PENDING bookings hold their seats until payment confirms
// them or the payment window lapses; CANCELLED and CONFIRMED are terminal
// except for an explicit cancellation of a confirmed booking.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Payment statuses tracked alongside the booking status.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Booking represents one reservation of SeatCount seats in a session.  Its
// SeatCount was atomically debited from the session ledger at creation time;
// every transition to CANCELLED must credit it back exactly once.
type Booking struct {
	ID               uint64      // bookings.id
	Reference        string      // bookings.reference, public UUID handed to clients
	SessionID        uint64      // bookings.session_id
	UserID           uint64      // bookings.user_id
	Type             BookingType // bookings.booking_type
	SeatCount        uint32      // bookings.seat_count
	Status           string      // bookings.status
	PaymentStatus    string      // bookings.payment_status
	TotalAmountCents uint32      // bookings.total_amount_cents
	IdempotencyKey   string      // bookings.idempotency_key, unique
	CreatedAt        time.Time   // bookings.created_at
	UpdatedAt        time.Time   // bookings.updated_at
}
