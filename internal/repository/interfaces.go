package repository

import (
	"context"
	"time"

	"github.com/vkamat93/seat-booking-app/internal/model"
)

// SeatStore is the durable seat catalog.  Implementations may be bound to
// a connection pool or to a single transaction; the ForUpdate variants only
// lock rows when bound to a transaction.
type SeatStore interface {
	Count(ctx context.Context) (int64, error)
	CreateBulk(ctx context.Context, seats []model.Seat) error
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error)
	GetBySeatNumber(ctx context.Context, number int) (*model.Seat, error)
	MarkBooked(ctx context.Context, seatID, userID uint64, at time.Time) error
	MarkFree(ctx context.Context, seatID, userID uint64) error
	ReleaseAll(ctx context.Context) (int64, error)
	ListWithOwners(ctx context.Context) ([]model.SeatView, error)
	GetWithOwner(ctx context.Context, id uint64) (*model.SeatView, error)
}

// UserStore holds user records and their seat back reference.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	AssignSeat(ctx context.Context, userID, seatID uint64) error
	ClearSeat(ctx context.Context, userID, seatID uint64) error
	ClearAllSeats(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, userID uint64, hash string, mustChange bool) error
}

// TxFunc is the unit of work executed by a Transactor.  The stores it
// receives are bound to the same transaction.
type TxFunc func(ctx context.Context, seats SeatStore, users UserStore) error

// Transactor runs a TxFunc atomically: every write made through the
// supplied stores commits together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}
