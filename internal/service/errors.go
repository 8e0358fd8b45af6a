package service

import "errors"

// Booking errors.  Handlers map these to HTTP status codes and user
// facing messages.
var (
	ErrAlreadyHoldsSeat  = errors.New("user already holds a seat")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatAlreadyBooked = errors.New("seat already booked")
	ErrNoSeatHeld        = errors.New("user holds no seat")
	ErrUserNotFound      = errors.New("user not found")
)

// Auth errors.
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNotAllowed         = errors.New("username not allow-listed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingPasswords   = errors.New("current and new password are required")
	ErrPasswordTooShort   = errors.New("new password too short")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// MinPasswordLength is the shortest password ChangePassword accepts.
const MinPasswordLength = 6

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrAlreadyHoldsSeat, ErrSeatNotFound, ErrSeatAlreadyBooked, ErrNoSeatHeld, ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
