package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vkamat93/seat-booking-app/internal/handler"
	"github.com/vkamat93/seat-booking-app/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check under /api and the Prometheus scrape endpoint.  A nil
// metrics handler leaves /metrics unregistered.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	e.GET("/api/health", handler.Health(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the authentication routes under /api/auth.  Login
// is public and rate limited; me and change-password require a valid
// token but not a changed password, so first-login users can reach them.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login, orPassThrough(limiter))

	auth := g.Group("", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/change-password", a.ChangePassword)
}

func orPassThrough(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m != nil {
		return m
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
