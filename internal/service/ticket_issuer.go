package service

import (
	"context"
	"errors"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
	"github.com/petitrideau/theatre-ticket-reservation/internal/utils"
)

// ErrBookingNotConfirmed is returned when issuance is requested for a
// booking that has not reached CONFIRMED.
var ErrBookingNotConfirmed = errors.New("booking is not confirmed")

// TicketIssuer materializes one ticket per reserved seat once a booking is
// confirmed. Issuance is exactly-once: the unique index on
// tickets(booking_id, serial) rejects a second issuance and the issuer then
// returns the set written by the winner.
type TicketIssuer struct {
	tickets TicketStore
}

// NewTicketIssuer returns an issuer over the given ticket store.
func NewTicketIssuer(tickets TicketStore) *TicketIssuer {
	return &TicketIssuer{tickets: tickets}
}

// Issue creates the booking's tickets, serials 1..SeatCount, each with a
// random scan code. Calling Issue again for the same booking returns the
// already issued set unchanged.
func (i *TicketIssuer) Issue(ctx context.Context, booking model.Booking) ([]model.Ticket, error) {
	if booking.Status != model.BookingConfirmed {
		return nil, ErrBookingNotConfirmed
	}

	existing, err := i.tickets.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	batch := make([]model.Ticket, 0, booking.SeatCount)
	for serial := uint32(1); serial <= booking.SeatCount; serial++ {
		code, err := utils.TicketCode(booking.ID, serial)
		if err != nil {
			return nil, err
		}
		batch = append(batch, model.Ticket{
			BookingID: booking.ID,
			Serial:    serial,
			Code:      code,
			Status:    model.TicketActive,
		})
	}
	if err := i.tickets.CreateAll(ctx, batch); err != nil {
		// A concurrent issuer won; their set is the booking's set.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return i.tickets.ListByBooking(ctx, booking.ID)
		}
		return nil, err
	}
	return i.tickets.ListByBooking(ctx, booking.ID)
}

// Void invalidates every still-active ticket of a booking.
func (i *TicketIssuer) Void(ctx context.Context, bookingID uint64) error {
	return i.tickets.VoidByBooking(ctx, bookingID)
}

// List returns a booking's issued tickets ordered by serial.
func (i *TicketIssuer) List(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	return i.tickets.ListByBooking(ctx, bookingID)
}
