// Package seed installs the fixed office seat catalog.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vkamat93/seat-booking-app/internal/model"
)

// SeatCatalog is the subset of the seat store seeding needs.
type SeatCatalog interface {
	Count(ctx context.Context) (int64, error)
	CreateBulk(ctx context.Context, seats []model.Seat) error
}

// layout lists seat numbers row by row.  Rows 1-4 are the main section,
// rows 5-10 the right cluster.
var layout = [][]int{
	{474, 475, 476, 477, 478, 479},
	{480, 481, 482, 483, 484, 485},
	{486, 487, 488, 489, 490},
	{491, 492, 493, 494, 495},
	{411, 406},
	{410, 407},
	{409, 408},
	{417, 412},
	{416, 413},
	{415, 414},
}

// DefaultLayout returns the 34 seats of the office, free, with 1-based
// row and position.
func DefaultLayout() []model.Seat {
	var seats []model.Seat
	for r, row := range layout {
		for p, number := range row {
			seats = append(seats, model.Seat{
				SeatNumber: number,
				Row:        r + 1,
				Position:   p + 1,
				Status:     model.SeatFree,
			})
		}
	}
	return seats
}

// EnsureSeats inserts DefaultLayout when the catalog is empty.  It does
// nothing when any seat already exists.  The return value reports how many
// seats were created.
func EnsureSeats(ctx context.Context, store SeatCatalog, logger *slog.Logger) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	if n > 0 {
		logger.Info("seat catalog present", slog.Int64("seats", n))
		return 0, nil
	}
	seats := DefaultLayout()
	if err := store.CreateBulk(ctx, seats); err != nil {
		return 0, fmt.Errorf("seed seats: %w", err)
	}
	logger.Info("seat catalog created", slog.Int("seats", len(seats)))
	return len(seats), nil
}
