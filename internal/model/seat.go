package model

import "time"

// SeatStatus is the occupancy state of a seat.
type SeatStatus string

const (
	SeatFree   SeatStatus = "free"
	SeatBooked SeatStatus = "booked"
)

// Seat describes one desk in the office layout.  Seats are created once
// when the catalog is bootstrapped and are never deleted; only the
// occupancy fields change afterwards.
//
// Fields:
//
//	ID         – primary key identifier.
//	SeatNumber – human facing desk number, unique across the office.
//	Row        – presentational row index.
//	Position   – presentational 1-based position within the row.
//	Status     – free or booked.
//	BookedBy   – owning user id; non-nil iff Status is booked.
//	BookedAt   – time of the last booking transition, nil when free.
type Seat struct {
	ID         uint64     // seats.id
	SeatNumber int        // seats.seat_number
	Row        int        // seats.row_no
	Position   int        // seats.position
	Status     SeatStatus // seats.status
	BookedBy   *uint64    // seats.booked_by (nullable)
	BookedAt   *time.Time // seats.booked_at (nullable)
}

// IsFree reports whether the seat can be booked.
func (s Seat) IsFree() bool { return s.Status == SeatFree }

// SeatOwner is the display identity attached to a booked seat.
type SeatOwner struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// SeatView is the read projection returned to clients: a seat plus the
// username of the user holding it.
type SeatView struct {
	ID         uint64     `json:"id"`
	SeatNumber int        `json:"seatNumber"`
	Row        int        `json:"row"`
	Position   int        `json:"position"`
	Status     SeatStatus `json:"status"`
	BookedBy   *SeatOwner `json:"bookedBy"`
	BookedAt   *time.Time `json:"bookedAt"`
}
