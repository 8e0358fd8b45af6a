package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns the health-check endpoint used by load balancers and
// monitoring.  It reports {status, timestamp}; when the database does not
// answer a ping within two seconds the status is "unavailable" with 503.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		now := time.Now().UTC()
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "timestamp": now})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "timestamp": now})
	}
}
