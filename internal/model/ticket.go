package model

import "time"

// Ticket statuses.  ACTIVE tickets admit one person; USED marks a scanned
// ticket and VOID marks tickets of a cancelled booking.
const (
	TicketActive = "ACTIVE"
	TicketUsed   = "USED"
	TicketVoid   = "VOID"
)

// Ticket is one admit-one credential derived from a confirmed booking.
// Serial runs 1..seat_count within the booking; Code is globally unique and
// scanned at the venue entrance.  A booking's ticket set is created in a
// single statement so partial issuance is never observable.
type Ticket struct {
	ID        uint64    // tickets.id
	BookingID uint64    // tickets.booking_id
	Serial    uint32    // tickets.serial, 1-based position within the booking
	Code      string    // tickets.code
	Status    string    // tickets.status
	CreatedAt time.Time // tickets.created_at
}
