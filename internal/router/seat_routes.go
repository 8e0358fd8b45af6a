package router

import (
	"github.com/labstack/echo/v4"

	"github.com/vkamat93/seat-booking-app/internal/handler"
	"github.com/vkamat93/seat-booking-app/internal/middleware"
)

// RegisterSeats registers the seat endpoints under /api/seats.  Listing is
// public.  Booking and release require a valid token whose holder has
// replaced the default password, and are rate limited per user.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/seats")
	g.GET("", h.ListSeats)

	protected := g.Group("",
		middleware.JWTAuth(jwtSecret),
		middleware.RequirePasswordChanged(),
		orPassThrough(limiter),
	)
	protected.POST("/book/:seatId", h.Book)
	protected.POST("/release", h.Release)
}
