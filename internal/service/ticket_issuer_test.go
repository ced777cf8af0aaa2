package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

func TestIssueCreatesOneTicketPerSeat(t *testing.T) {
	store := newMemTickets()
	issuer := NewTicketIssuer(store)

	booking := model.Booking{ID: 11, SeatCount: 4, Status: model.BookingConfirmed}
	tickets, err := issuer.Issue(context.Background(), booking)
	assert.NoError(t, err)
	assert.Len(t, tickets, 4)

	seen := map[string]bool{}
	for i, tk := range tickets {
		assert.Equal(t, uint64(11), tk.BookingID)
		assert.Equal(t, uint32(i+1), tk.Serial)
		assert.Equal(t, model.TicketActive, tk.Status)
		assert.False(t, seen[tk.Code], "duplicate code %s", tk.Code)
		seen[tk.Code] = true
	}
}

func TestIssueRefusesUnconfirmedBooking(t *testing.T) {
	issuer := NewTicketIssuer(newMemTickets())

	_, err := issuer.Issue(context.Background(), model.Booking{ID: 11, SeatCount: 2, Status: model.BookingPending})
	assert.ErrorIs(t, err, ErrBookingNotConfirmed)
}

func TestIssueIsIdempotent(t *testing.T) {
	store := newMemTickets()
	issuer := NewTicketIssuer(store)

	booking := model.Booking{ID: 11, SeatCount: 2, Status: model.BookingConfirmed}
	first, err := issuer.Issue(context.Background(), booking)
	assert.NoError(t, err)

	second, err := issuer.Issue(context.Background(), booking)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	all, _ := store.ListByBooking(context.Background(), 11)
	assert.Len(t, all, 2)
}

func TestIssueReturnsWinnersSetOnRace(t *testing.T) {
	// Simulate losing the insert race: the listing is empty, the insert
	// hits the unique index, the re-list sees the winner's tickets.
	store := new(MockTickets)
	issuer := NewTicketIssuer(store)

	winners := []model.Ticket{
		{BookingID: 11, Serial: 1, Code: "11-1-aa", Status: model.TicketActive},
		{BookingID: 11, Serial: 2, Code: "11-2-bb", Status: model.TicketActive},
	}
	store.On("ListByBooking", mock.Anything, uint64(11)).Return([]model.Ticket{}, nil).Once()
	store.On("CreateAll", mock.Anything, mock.Anything).Return(repository.ErrDuplicateKey)
	store.On("ListByBooking", mock.Anything, uint64(11)).Return(winners, nil).Once()

	tickets, err := issuer.Issue(context.Background(), model.Booking{ID: 11, SeatCount: 2, Status: model.BookingConfirmed})
	assert.NoError(t, err)
	assert.Equal(t, winners, tickets)
	store.AssertExpectations(t)
}
