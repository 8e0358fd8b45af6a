package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Usernames are stored lowercased.  BookedSeatID is the
// back reference to the seat the user currently holds; it always points
// at a seat whose BookedBy is this user.
//
// Fields:
//
//	ID                 – primary key identifier of the user.
//	Username           – unique lowercased login name.
//	PasswordHash       – bcrypt hashed password.
//	MustChangePassword – set on auto-created accounts until the default password is replaced.
//	BookedSeatID       – seat held by the user, nil when none.
//	CreatedAt          – timestamp of creation.
type User struct {
	ID                 uint64    // users.id
	Username           string    // users.username
	PasswordHash       string    // users.password_hash
	MustChangePassword bool      // users.must_change_password
	BookedSeatID       *uint64   // users.booked_seat_id (nullable)
	CreatedAt          time.Time // users.created_at
}

// HasSeat reports whether the user currently holds a seat.
func (u User) HasSeat() bool { return u.BookedSeatID != nil }
