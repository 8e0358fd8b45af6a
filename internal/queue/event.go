// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Exchange is the durable topic exchange every seat event is published to.
const Exchange = "seat_booking"

// Routing keys.
const (
	RoutingSeatBooked   = "seat.booked"
	RoutingSeatReleased = "seat.released"
	RoutingSeatsReset   = "seats.reset"
)

// SeatEvent is emitted after a booking or release commits.
type SeatEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	SeatID     uint64    `json:"seat_id"`
	SeatNumber int       `json:"seat_number"`
	UserID     uint64    `json:"user_id"`
	Username   string    `json:"username"`
	Source     string    `json:"source"` // "user" or "scheduler"
	OccurredAt time.Time `json:"occurred_at"`
}

// ResetEvent summarizes one run of the daily release.
type ResetEvent struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	SeatsReleased   int64     `json:"seats_released"`
	UsersUpdated    int64     `json:"users_updated"`
	PreAssignStatus string    `json:"preassign_status"`
	PreAssignReason string    `json:"preassign_reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewSeatEvent stamps a SeatEvent with a fresh id.
func NewSeatEvent(routingKey string, seatID uint64, seatNumber int, userID uint64, username, source string, at time.Time) SeatEvent {
	return SeatEvent{
		EventID:    uuid.NewString(),
		Type:       routingKey,
		SeatID:     seatID,
		SeatNumber: seatNumber,
		UserID:     userID,
		Username:   username,
		Source:     source,
		OccurredAt: at.UTC(),
	}
}
