package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vkamat93/seat-booking-app/internal/middleware"
	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

// Authenticator is the auth surface used by AuthHandler.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*service.Session, error)
	Me(ctx context.Context, userID uint64) (*service.Profile, error)
	ChangePassword(ctx context.Context, userID uint64, current, next string) (*service.Session, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type loginResp struct {
	ID                 uint64    `json:"id"`
	Username           string    `json:"username"`
	BookedSeat         *uint64   `json:"bookedSeat"` // seat id or null
	MustChangePassword bool      `json:"mustChangePassword"`
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

type meResp struct {
	ID                 uint64          `json:"id"`
	Username           string          `json:"username"`
	BookedSeat         *model.SeatView `json:"bookedSeat"`
	MustChangePassword bool            `json:"mustChangePassword"`
}

type changePasswordResp struct {
	Message            string `json:"message"`
	MustChangePassword bool   `json:"mustChangePassword"`
	Token              string `json:"token"`
}

// Login handles POST /api/auth/login.  Allow-listed usernames without an
// account are created on their first login with their default password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide username and password")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, "Please provide username and password")
		case errors.Is(err, service.ErrNotAllowed):
			return echo.NewHTTPError(http.StatusForbidden, "Username not authorized. Please contact administrator.")
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Server error during login").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, loginResp{
		ID:                 s.User.ID,
		Username:           s.User.Username,
		BookedSeat:         s.User.BookedSeatID,
		MustChangePassword: s.User.MustChangePassword,
		Token:              s.Token.Token,
		ExpiresAt:          s.Token.Exp,
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.auth.Me(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, meResp{
		ID:                 p.User.ID,
		Username:           p.User.Username,
		BookedSeat:         p.Seat,
		MustChangePassword: p.User.MustChangePassword,
	})
}

// ChangePassword handles POST /api/auth/change-password.  The response
// carries a new token whose pwd_change claim is false, which booking
// routes require.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide current and new password")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.auth.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingPasswords):
			return echo.NewHTTPError(http.StatusBadRequest, "Please provide current and new password")
		case errors.Is(err, service.ErrPasswordTooShort):
			return echo.NewHTTPError(http.StatusBadRequest, "New password must be at least 6 characters")
		case errors.Is(err, service.ErrWrongPassword):
			return echo.NewHTTPError(http.StatusUnauthorized, "Current password is incorrect")
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Server error during password change").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, changePasswordResp{
		Message:            "Password changed successfully",
		MustChangePassword: false,
		Token:              s.Token.Token,
	})
}
