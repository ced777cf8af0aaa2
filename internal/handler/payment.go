package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
	"github.com/petitrideau/theatre-ticket-reservation/internal/service"
)

// PaymentHandler receives the payment collaborator's callbacks. Both
// endpoints are idempotent: the provider retries callbacks until it sees a
// 2xx, so a replay after success must not error out or double-issue.
type PaymentHandler struct {
	Engine *service.ReservationEngine
}

func NewPaymentHandler(engine *service.ReservationEngine) *PaymentHandler {
	return &PaymentHandler{Engine: engine}
}

type paymentCallbackReq struct {
	BookingID uint64 `json:"booking_id"`
}

// Confirm marks a booking paid, confirms it and issues its tickets.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req paymentCallbackReq
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	booking, tickets, err := h.Engine.ConfirmPayment(ctx, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, service.ErrBookingNotPending):
			// Cancelled before the money arrived; acknowledged so the
			// provider stops retrying, but the seats are gone.
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": booking.ID,
		"reference":  booking.Reference,
		"status":     booking.Status,
		"tickets":    toTicketResps(tickets),
	})
}

// Fail cancels a booking after a failed payment and releases its seats.
func (h *PaymentHandler) Fail(c echo.Context) error {
	var req paymentCallbackReq
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Engine.FailPayment(ctx, req.BookingID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, service.ErrBookingNotPending):
			// Already resolved; acknowledge the replay.
			return c.JSON(http.StatusOK, echo.Map{"message": "already processed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fail callback failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}
