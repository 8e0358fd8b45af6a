// Package repository defines error types that are reused across the seat
// and user stores.  These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrUserNotFound is returned when a user lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already exists")

// ErrSeatNotFree is returned when a conditional seat update matched no
// row: the seat was booked by someone else, or is no longer held by the
// expected user.
var ErrSeatNotFree = errors.New("seat state changed")

// ErrUserHasSeat is returned when a conditional user update matched no
// row because the user already references a seat (or no longer references
// the expected one).
var ErrUserHasSeat = errors.New("user seat reference changed")

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
