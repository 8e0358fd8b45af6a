package service

import (
	"context"
	"fmt"

	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/repository"
)

// SeatQueryService is the read side: it projects every seat with the
// username of its holder.  Every call reads the store; nothing is cached.
type SeatQueryService struct {
	seats repository.SeatStore
}

func NewSeatQueryService(seats repository.SeatStore) *SeatQueryService {
	return &SeatQueryService{seats: seats}
}

// ListSeats returns all seats ordered by row then position.
func (q *SeatQueryService) ListSeats(ctx context.Context) ([]model.SeatView, error) {
	seats, err := q.seats.ListWithOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	if seats == nil {
		seats = []model.SeatView{}
	}
	return seats, nil
}
