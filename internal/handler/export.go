package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

// ExportHandler streams a user's booking history as CSV, one row per
// booking, for schools that track their outings in spreadsheets.
type ExportHandler struct {
	Queries *repository.BookingQueryRepo
}

func NewExportHandler(queries *repository.BookingQueryRepo) *ExportHandler {
	return &ExportHandler{Queries: queries}
}

// BookingsCSV writes the caller's bookings as a CSV attachment.
func (h *ExportHandler) BookingsCSV(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rows, err := h.Queries.ExportByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="bookings-%d.csv"`, uid))
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	header := []string{"reference", "spectacle", "venue", "starts_at", "booking_type",
		"seat_count", "status", "payment_status", "total_amount_cents", "created_at"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Reference,
			r.SpectacleTitle,
			r.VenueName,
			r.StartsAt.UTC().Format(time.RFC3339),
			r.BookingType,
			strconv.FormatUint(uint64(r.SeatCount), 10),
			r.Status,
			r.PaymentStatus,
			strconv.FormatUint(uint64(r.TotalAmountCents), 10),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
