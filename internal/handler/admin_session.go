package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

type sessionReq struct {
	SpectacleID    uint64 `json:"spectacle_id"`
	VenueID        uint64 `json:"venue_id"`
	StartsAt       string `json:"starts_at"` // RFC3339
	TotalCapacity  uint32 `json:"total_capacity"`
	BasePriceCents uint32 `json:"base_price_cents"`
	SessionType    string `json:"session_type"`
}

type sessionResp struct {
	ID             uint64    `json:"id"`
	SpectacleID    uint64    `json:"spectacle_id"`
	VenueID        uint64    `json:"venue_id"`
	StartsAt       time.Time `json:"starts_at"`
	TotalCapacity  uint32    `json:"total_capacity"`
	ReservedCount  uint32    `json:"reserved_count"`
	AvailableSeats uint32    `json:"available_seats"`
	BasePriceCents uint32    `json:"base_price_cents"`
	SessionType    string    `json:"session_type"`
	Status         string    `json:"status"`
}

func toSessionResp(s *model.Session) sessionResp {
	return sessionResp{
		ID:             s.ID,
		SpectacleID:    s.SpectacleID,
		VenueID:        s.VenueID,
		StartsAt:       s.StartsAt,
		TotalCapacity:  s.TotalCapacity,
		ReservedCount:  s.ReservedCount,
		AvailableSeats: s.AvailableSeats(),
		BasePriceCents: s.BasePriceCents,
		SessionType:    string(s.Type),
		Status:         s.Status,
	}
}

// CreateSession schedules a performance. The spectacle must be active and
// the venue must exist; the start must lie in the future.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SpectacleID == 0 || req.VenueID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "spectacle_id/venue_id required"})
	}
	if req.TotalCapacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_capacity required"})
	}
	st, ok := model.ParseSessionType(strings.ToUpper(strings.TrimSpace(req.SessionType)))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown session_type"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	startsAt = startsAt.UTC()
	if !startsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sp, err := h.Spectacles.GetByID(ctx, req.SpectacleID)
	if err != nil {
		if errors.Is(err, repository.ErrSpectacleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spectacle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !sp.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "spectacle is not active"})
	}
	if _, err := h.Venues.GetByID(ctx, req.VenueID); err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	s := model.Session{
		SpectacleID:    req.SpectacleID,
		VenueID:        req.VenueID,
		StartsAt:       startsAt,
		TotalCapacity:  req.TotalCapacity,
		BasePriceCents: req.BasePriceCents,
		Type:           st,
	}
	if err := h.Sessions.Create(ctx, &s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, toSessionResp(&s))
}

type sessionUpdateReq struct {
	StartsAt       string `json:"starts_at"`
	TotalCapacity  uint32 `json:"total_capacity"`
	BasePriceCents uint32 `json:"base_price_cents"`
}

// UpdateSession reschedules a session or adjusts its price and capacity.
// Capacity can never shrink below the seats already reserved.
func (h *AdminHandler) UpdateSession(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req sessionUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TotalCapacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_capacity required"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s := model.Session{
		ID:             id,
		StartsAt:       startsAt.UTC(),
		TotalCapacity:  req.TotalCapacity,
		BasePriceCents: req.BasePriceCents,
	}
	if err := h.Sessions.UpdateSchedule(ctx, &s); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "capacity below reserved seats"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update session failed"})
	}
	updated, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toSessionResp(&updated))
}

// CancelSession takes a session off sale. Sessions with live bookings are
// refused; cancel or move those bookings first.
func (h *AdminHandler) CancelSession(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	n, err := h.Bookings.CountActiveBySession(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if n > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has active bookings", "active_bookings": n})
	}
	if err := h.Sessions.Cancel(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session cancelled"})
}

// SessionBookings lists every booking of a session with booker identities.
func (h *AdminHandler) SessionBookings(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bookings, err := h.Queries.ListBySessionForAdmin(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

type scanReq struct {
	Code string `json:"code"`
}

// ScanTicket validates a ticket code at the venue entrance and marks it
// used. A second scan of the same code reports it as already used.
func (h *AdminHandler) ScanTicket(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Tickets.MarkUsed(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan failed"})
	}
	if !ok {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket unknown, already used or void"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ticket admitted"})
}
