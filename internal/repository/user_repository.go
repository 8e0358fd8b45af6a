package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vkamat93/seat-booking-app/internal/model"
)

// UserRepo provides access to the users table.  Like SeatRepo it can be
// bound to either the pool or a transaction.
type UserRepo struct{ db DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, password_hash, must_change_password, booked_seat_id, created_at`

// Create inserts u and fills in its ID.  The username is normalized to
// lower case before insert.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, must_change_password) VALUES (?,?,?)",
		u.Username, u.PasswordHash, u.MustChangePassword)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = uint64(id)
	return nil
}

// GetByID fetches a user without locking.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByIDForUpdate fetches a user and locks its row inside a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id))
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// AssignSeat points the user at seatID.  It only succeeds while the user
// holds no seat; otherwise ErrUserHasSeat is returned.
func (r *UserRepo) AssignSeat(ctx context.Context, userID, seatID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET booked_seat_id=? WHERE id=? AND booked_seat_id IS NULL", seatID, userID)
	if err != nil {
		return fmt.Errorf("assign seat: %w", err)
	}
	return expectOneRow(res, ErrUserHasSeat)
}

// ClearSeat removes the user's reference to seatID.
func (r *UserRepo) ClearSeat(ctx context.Context, userID, seatID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET booked_seat_id=NULL WHERE id=? AND booked_seat_id=?", userID, seatID)
	if err != nil {
		return fmt.Errorf("clear seat: %w", err)
	}
	return expectOneRow(res, ErrUserHasSeat)
}

// ClearAllSeats drops every user's seat reference and returns how many
// users changed.
func (r *UserRepo) ClearAllSeats(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET booked_seat_id=NULL WHERE booked_seat_id IS NOT NULL")
	if err != nil {
		return 0, fmt.Errorf("clear all seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear all seats: %w", err)
	}
	return n, nil
}

// UpdatePassword stores a new bcrypt hash and the must-change flag.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID uint64, hash string, mustChange bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash=?, must_change_password=? WHERE id=?", hash, mustChange, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOneRow(res, ErrUserNotFound)
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var (
		u    model.User
		seat sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.MustChangePassword, &seat, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if seat.Valid {
		id := uint64(seat.Int64)
		u.BookedSeatID = &id
	}
	return &u, nil
}

var _ UserStore = (*UserRepo)(nil)
