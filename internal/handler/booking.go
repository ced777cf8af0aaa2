package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
	"github.com/petitrideau/theatre-ticket-reservation/internal/service"
)

// BookingHandler exposes the customer booking endpoints over the
// reservation engine and the read-side query repository.
type BookingHandler struct {
	Engine  *service.ReservationEngine
	Issuer  *service.TicketIssuer
	Queries *repository.BookingQueryRepo
	Users   *repository.UserRepo
}

func NewBookingHandler(engine *service.ReservationEngine, issuer *service.TicketIssuer, queries *repository.BookingQueryRepo, users *repository.UserRepo) *BookingHandler {
	return &BookingHandler{Engine: engine, Issuer: issuer, Queries: queries, Users: users}
}

type reserveReq struct {
	SessionID      uint64 `json:"session_id"`
	SeatCount      uint32 `json:"seat_count"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ticketResp struct {
	Serial uint32 `json:"serial"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

func toTicketResps(tickets []model.Ticket) []ticketResp {
	out := make([]ticketResp, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, ticketResp{Serial: t.Serial, Code: t.Code, Status: t.Status})
	}
	return out
}

type bookingResp struct {
	ID               uint64    `json:"id"`
	Reference        string    `json:"reference"`
	SessionID        uint64    `json:"session_id"`
	BookingType      string    `json:"booking_type"`
	SeatCount        uint32    `json:"seat_count"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	TotalAmountCents uint32    `json:"total_amount_cents"`
	IdempotencyKey   string    `json:"idempotency_key"`
	CreatedAt        time.Time `json:"created_at"`
}

// Reserve books seat_count seats on a session for the authenticated user.
// The booker's registered category drives the eligibility check; clients
// cannot book on behalf of another category. A missing idempotency key gets
// one generated so the response always carries a retry-safe key.
func (h *BookingHandler) Reserve(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	booking, err := h.Engine.Reserve(ctx, service.ReserveRequest{
		SessionID:      req.SessionID,
		UserID:         uid,
		BookingType:    u.BookerType,
		SeatCount:      req.SeatCount,
		IdempotencyKey: key,
	})
	if err != nil {
		var capErr *service.CapacityError
		switch {
		case errors.As(err, &capErr):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":           "not enough seats",
				"available_seats": capErr.AvailableSeats,
			})
		case errors.Is(err, service.ErrIneligibleBookingType):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "booking type not eligible for this session"})
		case errors.Is(err, service.ErrSessionNotBookable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "session is not open for booking"})
		case errors.Is(err, service.ErrInvalidSeatCount):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat count"})
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reserve failed"})
	}

	return c.JSON(http.StatusCreated, bookingResp{
		ID:               booking.ID,
		Reference:        booking.Reference,
		SessionID:        booking.SessionID,
		BookingType:      string(booking.Type),
		SeatCount:        booking.SeatCount,
		Status:           booking.Status,
		PaymentStatus:    booking.PaymentStatus,
		TotalAmountCents: booking.TotalAmountCents,
		IdempotencyKey:   booking.IdempotencyKey,
		CreatedAt:        booking.CreatedAt,
	})
}

// List returns the caller's bookings with session and ticket details.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	details, err := h.Queries.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": details})
}

// Get returns one booking owned by the caller.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	detail, err := h.Queries.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, detail)
}

// Cancel cancels the caller's booking, releasing its seats and voiding any
// issued tickets.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Engine.Cancel(ctx, id, uid); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			// Render foreign bookings as absent.
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "session already started"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}

// Tickets returns the issued tickets of the caller's booking.
func (h *BookingHandler) Tickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	// Ownership check first; the ticket store itself is not user-scoped.
	if _, err := h.Queries.GetByIDForUser(ctx, id, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	tickets, err := h.Issuer.List(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": toTicketResps(tickets)})
}
