package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vkamat93/seat-booking-app/internal/model"
)

// SeatRepo provides methods to work with seats in the database.  It may be
// bound to the connection pool or to a transaction.
type SeatRepo struct {
	db DBTX
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db DBTX) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, seat_number, row_no, position, status, booked_by, booked_at`

// Count returns the number of seats in the catalog.
func (r *SeatRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	return n, nil
}

// CreateBulk inserts multiple free seats in a single statement.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO seats (seat_number, row_no, position, status) VALUES `)
	args := make([]interface{}, 0, len(seats)*4)
	for i, seat := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, seat.SeatNumber, seat.Row, seat.Position, string(model.SeatFree))
	}
	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert seats: %w", err)
	}
	return nil
}

// GetByIDForUpdate loads a seat and, inside a transaction, takes an
// exclusive row lock on it until commit or rollback.
func (r *SeatRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id = ? FOR UPDATE`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetBySeatNumber loads a seat by its human facing number.
func (r *SeatRepo) GetBySeatNumber(ctx context.Context, number int) (*model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE seat_number = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, number))
}

// MarkBooked flips a free seat to booked for userID.  The update is
// conditional on the seat still being free; ErrSeatNotFree is returned
// when it is not.
func (r *SeatRepo) MarkBooked(ctx context.Context, seatID, userID uint64, at time.Time) error {
	const q = `UPDATE seats SET status = 'booked', booked_by = ?, booked_at = ?
	           WHERE id = ? AND status = 'free'`
	res, err := r.db.ExecContext(ctx, q, userID, at.UTC(), seatID)
	if err != nil {
		return fmt.Errorf("mark seat booked: %w", err)
	}
	return expectOneRow(res, ErrSeatNotFree)
}

// MarkFree resets a seat held by userID back to free.
func (r *SeatRepo) MarkFree(ctx context.Context, seatID, userID uint64) error {
	const q = `UPDATE seats SET status = 'free', booked_by = NULL, booked_at = NULL
	           WHERE id = ? AND booked_by = ?`
	res, err := r.db.ExecContext(ctx, q, seatID, userID)
	if err != nil {
		return fmt.Errorf("mark seat free: %w", err)
	}
	return expectOneRow(res, ErrSeatNotFree)
}

// ReleaseAll frees every booked seat in one set-based statement and
// returns how many seats changed.
func (r *SeatRepo) ReleaseAll(ctx context.Context) (int64, error) {
	const q = `UPDATE seats SET status = 'free', booked_by = NULL, booked_at = NULL
	           WHERE status = 'booked'`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("release all seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release all seats: %w", err)
	}
	return n, nil
}

const seatViewQuery = `SELECT s.id, s.seat_number, s.row_no, s.position, s.status, s.booked_by, s.booked_at, u.username
	FROM seats s
	LEFT JOIN users u ON u.id = s.booked_by`

// ListWithOwners returns every seat with its owner's username, ordered by
// row then position.
func (r *SeatRepo) ListWithOwners(ctx context.Context) ([]model.SeatView, error) {
	rows, err := r.db.QueryContext(ctx, seatViewQuery+` ORDER BY s.row_no, s.position`)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var out []model.SeatView
	for rows.Next() {
		v, err := scanSeatView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return out, nil
}

// GetWithOwner returns the projection of a single seat.
func (r *SeatRepo) GetWithOwner(ctx context.Context, id uint64) (*model.SeatView, error) {
	v, err := scanSeatView(r.db.QueryRowContext(ctx, seatViewQuery+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seat %d: %w", id, err)
	}
	return v, nil
}

func (r *SeatRepo) scanOne(row *sql.Row) (*model.Seat, error) {
	var (
		s        model.Seat
		status   string
		bookedBy sql.NullInt64
		bookedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.SeatNumber, &s.Row, &s.Position, &status, &bookedBy, &bookedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan seat: %w", err)
	}
	s.Status = model.SeatStatus(status)
	if bookedBy.Valid {
		id := uint64(bookedBy.Int64)
		s.BookedBy = &id
	}
	if bookedAt.Valid {
		t := bookedAt.Time
		s.BookedAt = &t
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSeatView(sc scanner) (*model.SeatView, error) {
	var (
		v        model.SeatView
		status   string
		bookedBy sql.NullInt64
		bookedAt sql.NullTime
		username sql.NullString
	)
	if err := sc.Scan(&v.ID, &v.SeatNumber, &v.Row, &v.Position, &status, &bookedBy, &bookedAt, &username); err != nil {
		return nil, err
	}
	v.Status = model.SeatStatus(status)
	if bookedBy.Valid {
		v.BookedBy = &model.SeatOwner{ID: uint64(bookedBy.Int64), Username: username.String}
	}
	if bookedAt.Valid {
		t := bookedAt.Time
		v.BookedAt = &t
	}
	return &v, nil
}

// expectOneRow maps a zero-row conditional update to miss.
func expectOneRow(res sql.Result, miss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return miss
	}
	return nil
}

var _ SeatStore = (*SeatRepo)(nil)
