package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vkamat93/seat-booking-app/internal/middleware"
	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

// SeatBooker is the write side used by SeatHandler.
type SeatBooker interface {
	Book(ctx context.Context, userID, seatID uint64) (*model.SeatView, error)
	Release(ctx context.Context, userID uint64) error
}

// SeatLister is the read side used by SeatHandler.
type SeatLister interface {
	ListSeats(ctx context.Context) ([]model.SeatView, error)
}

// SeatHandler serves the seat map and the book/release actions.  Book and
// Release expect JWTAuth to have run; the caller's id comes from the token
// and is trusted as is.
type SeatHandler struct {
	booker  SeatBooker
	seats   SeatLister
	timeout time.Duration // budget for one booking transaction
}

// NewSeatHandler constructs a SeatHandler.  A non-positive timeout falls
// back to five seconds.
func NewSeatHandler(booker SeatBooker, seats SeatLister, timeout time.Duration) *SeatHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SeatHandler{booker: booker, seats: seats, timeout: timeout}
}

type bookResp struct {
	Message string          `json:"message"`
	Seat    *model.SeatView `json:"seat"`
}

// ListSeats handles GET /api/seats.  Every seat is returned, ordered by
// row then position, with the holder's username when booked.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	seats, err := h.seats.ListSeats(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error fetching seats").SetInternal(err)
	}
	return c.JSON(http.StatusOK, seats)
}

// Book handles POST /api/seats/book/:seatId.
//
//	200 {message, seat}  booked
//	400                  caller already holds a seat, seat already booked, bad id
//	404                  unknown seat
func (h *SeatHandler) Book(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}
	seatID, err := strconv.ParseUint(c.Param("seatId"), 10, 64)
	if err != nil || seatID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid seat id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	seat, err := h.booker.Book(ctx, userID, seatID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyHoldsSeat):
			return echo.NewHTTPError(http.StatusBadRequest, "You already have a booked seat. Release it first to book another.")
		case errors.Is(err, service.ErrSeatNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Seat not found")
		case errors.Is(err, service.ErrSeatAlreadyBooked):
			return echo.NewHTTPError(http.StatusBadRequest, "This seat is already booked")
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Server error during booking").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, bookResp{Message: "Seat booked successfully", Seat: seat})
}

// Release handles POST /api/seats/release.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.booker.Release(ctx, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoSeatHeld):
			return echo.NewHTTPError(http.StatusBadRequest, "You have no seat to release")
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Server error during seat release").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Seat released successfully"})
}
