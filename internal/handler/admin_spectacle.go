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

// AdminHandler bundles the repositories the administration endpoints need:
// catalogue management (spectacles, venues), session scheduling and ticket
// scanning at the venue entrance.
type AdminHandler struct {
	Spectacles *repository.SpectacleRepo
	Venues     *repository.VenueRepo
	Sessions   *repository.SessionRepo
	Bookings   *repository.BookingRepo
	Tickets    *repository.TicketRepo
	Queries    *repository.BookingQueryRepo
}

func NewAdminHandler(
	spectacles *repository.SpectacleRepo,
	venues *repository.VenueRepo,
	sessions *repository.SessionRepo,
	bookings *repository.BookingRepo,
	tickets *repository.TicketRepo,
	queries *repository.BookingQueryRepo,
) *AdminHandler {
	return &AdminHandler{
		Spectacles: spectacles,
		Venues:     venues,
		Sessions:   sessions,
		Bookings:   bookings,
		Tickets:    tickets,
		Queries:    queries,
	}
}

type spectacleReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AgeMin      uint8  `json:"age_min"`
	AgeMax      uint8  `json:"age_max"`
	IsActive    *bool  `json:"is_active"`
}

type spectacleResp struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AgeMin      uint8  `json:"age_min"`
	AgeMax      uint8  `json:"age_max"`
	IsActive    bool   `json:"is_active"`
}

func toSpectacleResp(s *model.Spectacle) spectacleResp {
	return spectacleResp{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		AgeMin:      s.AgeMin,
		AgeMax:      s.AgeMax,
		IsActive:    s.IsActive,
	}
}

// CreateSpectacle adds a production to the catalogue.
func (h *AdminHandler) CreateSpectacle(c echo.Context) error {
	var req spectacleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.AgeMax > 0 && req.AgeMin > req.AgeMax {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "age_min exceeds age_max"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := model.Spectacle{Title: req.Title, Description: req.Description, AgeMin: req.AgeMin, AgeMax: req.AgeMax}
	if err := h.Spectacles.Create(ctx, &s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create spectacle failed"})
	}
	return c.JSON(http.StatusCreated, toSpectacleResp(&s))
}

// UpdateSpectacle rewrites a spectacle's editable fields.
func (h *AdminHandler) UpdateSpectacle(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spectacle id"})
	}
	var req spectacleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Spectacles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSpectacleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spectacle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	existing.Title = req.Title
	existing.Description = req.Description
	existing.AgeMin = req.AgeMin
	existing.AgeMax = req.AgeMax
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if err := h.Spectacles.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrSpectacleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spectacle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update spectacle failed"})
	}
	return c.JSON(http.StatusOK, toSpectacleResp(existing))
}

// DeactivateSpectacle retires a spectacle from the public catalogue.
func (h *AdminHandler) DeactivateSpectacle(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spectacle id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Spectacles.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSpectacleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spectacle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "spectacle deactivated"})
}
