// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/handler"
	"github.com/petitrideau/theatre-ticket-reservation/internal/middleware"
	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// RegisterRoutes registers routes that need no authentication. Currently
// just the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Token-issuing
// operations live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a refresh token in the body without requiring a JWT,
	// so an expired access token can still end the session.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalogue endpoints. The
// cache middleware, when enabled, wraps the spectacle and session listings;
// availability is always served live.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	if cache != nil {
		cached := e.Group("", cache)
		cached.GET("/v1/spectacles", p.ListSpectacles)
		cached.GET("/v1/spectacles/:id/sessions", p.SpectacleSessions)
	} else {
		e.GET("/v1/spectacles", p.ListSpectacles)
		e.GET("/v1/spectacles/:id/sessions", p.SpectacleSessions)
	}
	e.GET("/v1/sessions/:id/availability", p.SessionAvailability)
}

// RegisterCustomer registers the booking endpoints. All routes require a
// valid JWT with the CUSTOMER role; ownership of individual bookings is
// enforced inside the handlers.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, exp *handler.ExportHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/bookings", b.Reserve)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.DELETE("/bookings/:id", b.Cancel)
	g.GET("/bookings/:id/tickets", b.Tickets)
	g.GET("/bookings/export", exp.BookingsCSV)
}

// RegisterPayment registers the payment collaborator's callback endpoints.
// They are authenticated by a shared JWT like every internal caller; the
// provider is issued an ADMIN token out of band.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler, jwtSecret string) {
	g := e.Group(
		"/v1/payments",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/confirm", p.Confirm)
	g.POST("/fail", p.Fail)
}
