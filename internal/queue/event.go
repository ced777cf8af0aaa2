// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// BookingConfirmedEvent is published when a booking reaches CONFIRMED and its
// tickets have been issued. It carries enough information for downstream
// consumers to log, notify schools, or feed analytics without querying the
// primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	Reference        string `json:"reference"`
	UserID           uint64 `json:"user_id"`
	SessionID        uint64 `json:"session_id"`
	SpectacleTitle   string `json:"spectacle_title"`
	VenueName        string `json:"venue_name"`
	VenueCity        string `json:"venue_city"`
	StartsAt         string `json:"starts_at"`
	BookingType      string `json:"booking_type"`
	SeatCount        uint32 `json:"seat_count"`
	TotalAmountCents uint32 `json:"total_amount_cents"`
	ConfirmedAt      string `json:"confirmed_at"`
}
