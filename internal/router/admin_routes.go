package router

import (
	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/handler"
	"github.com/petitrideau/theatre-ticket-reservation/internal/middleware"
	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// RegisterAdmin registers catalogue management, session scheduling and
// gate-scanning endpoints. All routes require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.POST("/spectacles", h.CreateSpectacle)
	g.PUT("/spectacles/:id", h.UpdateSpectacle)
	g.DELETE("/spectacles/:id", h.DeactivateSpectacle)

	g.GET("/venues", h.ListVenues)
	g.POST("/venues", h.CreateVenue)
	g.PUT("/venues/:id", h.UpdateVenue)
	g.DELETE("/venues/:id", h.DeleteVenue)

	g.POST("/sessions", h.CreateSession)
	g.PUT("/sessions/:id", h.UpdateSession)
	g.DELETE("/sessions/:id", h.CancelSession)
	g.GET("/sessions/:id/bookings", h.SessionBookings)

	g.POST("/tickets/scan", h.ScanTicket)
}
