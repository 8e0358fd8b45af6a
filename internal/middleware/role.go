package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePasswordChanged rejects callers whose token still carries the
// must-change-password flag.  Accounts auto-created from the allow list
// start with that flag set and may not book or release until they have
// replaced their default password.  It must run after JWTAuth.
func RequirePasswordChanged() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := UserID(c); !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Not authorized, no token"})
			}
			if MustChangePassword(c) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":            "Please change your password before booking",
					"mustChangePassword": true,
				})
			}
			return next(c)
		}
	}
}
