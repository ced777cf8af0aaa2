package model

import "time"

// SessionType restricts which audience may book a session.  PUBLIC sessions
// accept every booking category; the other three are reserved for the
// matching institutional category.
type SessionType string

const (
	SessionPublic        SessionType = "PUBLIC"
	SessionPrivateSchool SessionType = "PRIVATE_SCHOOL"
	SessionPublicSchool  SessionType = "PUBLIC_SCHOOL"
	SessionAssociation   SessionType = "ASSOCIATION"
)

// ParseSessionType validates a raw session type value.  Unknown values are
// rejected rather than falling through to a default.
func ParseSessionType(raw string) (SessionType, bool) {
	switch SessionType(raw) {
	case SessionPublic, SessionPrivateSchool, SessionPublicSchool, SessionAssociation:
		return SessionType(raw), true
	}
	return "", false
}

// Session represents one scheduled performance of a spectacle in a venue.
// ReservedCount is the ledger side of the capacity invariant: it is mutated
// only through the session repository's TryReserve/Release conditional
// updates and always satisfies 0 <= ReservedCount <= TotalCapacity.
//
// Fields:
//
//	ID             – primary key identifier.
//	SpectacleID    – spectacle being performed.
//	VenueID        – venue hosting the performance.
//	StartsAt       – when the performance begins (UTC).
//	TotalCapacity  – fixed number of seats for the session.
//	ReservedCount  – seats currently debited by non-cancelled bookings.
//	BasePriceCents – price per seat in cents.
//	Type           – audience restriction (see SessionType).
//	Status         – current state (SCHEDULED, CANCELLED, FINISHED).
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Session struct {
	ID             uint64      // sessions.id
	SpectacleID    uint64      // sessions.spectacle_id
	VenueID        uint64      // sessions.venue_id
	StartsAt       time.Time   // sessions.starts_at
	TotalCapacity  uint32      // sessions.total_capacity
	ReservedCount  uint32      // sessions.reserved_count
	BasePriceCents uint32      // sessions.base_price_cents
	Type           SessionType // sessions.session_type
	Status         string      // sessions.status
	CreatedAt      time.Time   // sessions.created_at
	UpdatedAt      time.Time   // sessions.updated_at
}

// AvailableSeats returns the remaining capacity of the session.
func (s Session) AvailableSeats() uint32 {
	if s.ReservedCount >= s.TotalCapacity {
		return 0
	}
	return s.TotalCapacity - s.ReservedCount
}

// Bookable reports whether new reservations may target this session: it must
// still be scheduled and start in the future.
func (s Session) Bookable(now time.Time) bool {
	return s.Status == "SCHEDULED" && s.StartsAt.After(now)
}
