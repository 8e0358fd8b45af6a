package middleware

// identity.go defines the context keys JWTAuth populates and accessors for
// handlers and other middleware.

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	CtxUserID             = "user_id"
	CtxUsername           = "username"
	CtxMustChangePassword = "must_change_password"
)

// UserID returns the authenticated user id.  ok is false on routes not
// wrapped by JWTAuth.
func UserID(c echo.Context) (id uint64, ok bool) {
	id, ok = c.Get(CtxUserID).(uint64)
	return id, ok && id != 0
}

// Username returns the authenticated username, or "" when absent.
func Username(c echo.Context) string {
	s, _ := c.Get(CtxUsername).(string)
	return s
}

// MustChangePassword reports the pwd_change claim of the caller's token.
func MustChangePassword(c echo.Context) bool {
	v, _ := c.Get(CtxMustChangePassword).(bool)
	return v
}
