// Package service contains the business logic sitting between the HTTP
// handlers and the repositories: the reservation engine, the ticket issuer
// and the payment-timeout sweeper. Dependencies are expressed as narrow
// interfaces so each piece can be exercised against mocks.
package service

import (
	"context"
	"time"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/queue"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

// SessionLedger is the slice of SessionRepo the engine needs: reading a
// session and moving seats in and out of its capacity ledger.
type SessionLedger interface {
	GetByID(ctx context.Context, id uint64) (model.Session, error)
	TryReserve(ctx context.Context, sessionID uint64, seatCount uint32) (repository.ReserveResult, error)
	Release(ctx context.Context, sessionID uint64, seatCount uint32) error
}

// BookingStore is the slice of BookingRepo used by the engine and sweeper.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	GetByIdempotencyKey(ctx context.Context, key string) (model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error)
	SetPaymentStatus(ctx context.Context, id uint64, status string) error
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error)
}

// TicketStore is the slice of TicketRepo used by the issuer and the
// cancellation paths.
type TicketStore interface {
	CreateAll(ctx context.Context, tickets []model.Ticket) error
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error)
	VoidByBooking(ctx context.Context, bookingID uint64) error
}

// SpectacleReader resolves spectacle metadata for event enrichment.
type SpectacleReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Spectacle, error)
}

// VenueReader resolves venue metadata for event enrichment.
type VenueReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Venue, error)
}

// EventPublisher pushes a confirmation event to the broker. A failed publish
// is logged, never propagated to the booker.
type EventPublisher func(ctx context.Context, event queue.BookingConfirmedEvent) error
