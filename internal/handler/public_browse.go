package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
)

// PublicHandler serves the unauthenticated catalogue: active spectacles,
// their upcoming sessions and live seat availability. These endpoints sit
// behind the Redis response cache.
type PublicHandler struct {
	Spectacles *repository.SpectacleRepo
	Sessions   *repository.SessionRepo
	Venues     *repository.VenueRepo
}

func NewPublicHandler(spectacles *repository.SpectacleRepo, sessions *repository.SessionRepo, venues *repository.VenueRepo) *PublicHandler {
	return &PublicHandler{Spectacles: spectacles, Sessions: sessions, Venues: venues}
}

// ListSpectacles returns the active catalogue.
func (h *PublicHandler) ListSpectacles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spectacles, err := h.Spectacles.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]spectacleResp, 0, len(spectacles))
	for i := range spectacles {
		out = append(out, toSpectacleResp(&spectacles[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"spectacles": out})
}

// SpectacleSessions returns a spectacle's upcoming scheduled sessions with
// venue details and remaining seats.
func (h *PublicHandler) SpectacleSessions(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spectacle id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sp, err := h.Spectacles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSpectacleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spectacle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	sessions, err := h.Sessions.ListUpcomingBySpectacle(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	type sessionWithVenue struct {
		sessionResp
		VenueName string `json:"venue_name"`
		VenueCity string `json:"venue_city"`
	}
	out := make([]sessionWithVenue, 0, len(sessions))
	for i := range sessions {
		item := sessionWithVenue{sessionResp: toSessionResp(&sessions[i])}
		if v, err := h.Venues.GetByID(ctx, sessions[i].VenueID); err == nil {
			item.VenueName = v.Name
			item.VenueCity = v.City
		}
		out = append(out, item)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"spectacle": toSpectacleResp(sp),
		"sessions":  out,
	})
}

// SessionAvailability returns the remaining seat count of one session. Not
// cached: booking clients poll it right before reserving.
func (h *PublicHandler) SessionAvailability(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	avail, err := h.Sessions.AvailableSeats(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": id, "available_seats": avail})
}
