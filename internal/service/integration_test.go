//go:build integration

package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkamat93/seat-booking-app/internal/database"
	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/repository"
	"github.com/vkamat93/seat-booking-app/internal/scheduler"
	"github.com/vkamat93/seat-booking-app/internal/seed"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

// openTestDB connects to the MySQL named by TEST_DB_* and resets the
// schema contents.  The test is skipped when TEST_DB_HOST is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "3306"
	}
	db, err := database.Open(os.Getenv("TEST_DB_USER"), os.Getenv("TEST_DB_PASS"), host, port, os.Getenv("TEST_DB_NAME"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	for _, q := range []string{
		"UPDATE users SET booked_seat_id = NULL",
		"UPDATE seats SET status = 'free', booked_by = NULL, booked_at = NULL",
		"DELETE FROM seats",
		"DELETE FROM users",
	} {
		_, err := db.ExecContext(ctx, q)
		require.NoError(t, err, q)
	}
	return db
}

func createUsers(t *testing.T, users repository.UserStore, names ...string) []uint64 {
	t.Helper()
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		u := &model.User{Username: name, PasswordHash: "x"}
		require.NoError(t, users.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func seatByNumber(t *testing.T, store *repository.Store, number int) *model.Seat {
	t.Helper()
	s, err := store.Seats().GetBySeatNumber(context.Background(), number)
	require.NoError(t, err)
	return s
}

func TestMySQL_ConcurrentBookSameSeat(t *testing.T) {
	db := openTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	_, err := seed.EnsureSeats(ctx, store.Seats(), quietLogger())
	require.NoError(t, err)

	const n = 16
	names := make([]string, n)
	for i := range names {
		names[i] = "racer" + string(rune('a'+i))
	}
	ids := createUsers(t, store.Users(), names...)
	seat := seatByNumber(t, store, 474)
	svc := service.NewBookingService(store, nil, nil, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []uint64
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, err := svc.Book(ctx, id, seat.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, id)
			case errors.Is(err, service.ErrSeatAlreadyBooked):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	require.Len(t, successes, 1)
	assert.Equal(t, n-1, conflicts)
	got := seatByNumber(t, store, 474)
	require.NotNil(t, got.BookedBy)
	assert.Equal(t, successes[0], *got.BookedBy)
	assertSymmetric(t, db)
}

func TestMySQL_BookReleaseRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	_, err := seed.EnsureSeats(ctx, store.Seats(), quietLogger())
	require.NoError(t, err)
	ids := createUsers(t, store.Users(), "alice")
	seat := seatByNumber(t, store, 480)
	svc := service.NewBookingService(store, nil, nil, nil)

	_, err = svc.Book(ctx, ids[0], seat.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, ids[0]))
	assert.ErrorIs(t, svc.Release(ctx, ids[0]), service.ErrNoSeatHeld)

	got := seatByNumber(t, store, 480)
	assert.True(t, got.IsFree())
	assert.Nil(t, got.BookedBy)
	assert.Nil(t, got.BookedAt)
	u, err := store.Users().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, u.BookedSeatID)
	assertSymmetric(t, db)
}

func TestMySQL_ReleaseJob(t *testing.T) {
	db := openTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	_, err := seed.EnsureSeats(ctx, store.Seats(), quietLogger())
	require.NoError(t, err)
	ids := createUsers(t, store.Users(), "carol", "dave")
	svc := service.NewBookingService(store, nil, nil, nil)
	_, err = svc.Book(ctx, ids[0], seatByNumber(t, store, 495).ID)
	require.NoError(t, err)

	job := scheduler.NewReleaseJob(scheduler.ReleaseJobDeps{
		Tx:     store,
		Seats:  store.Seats(),
		Users:  store.Users(),
		Booker: svc,
		Target: scheduler.PreAssignTarget{Username: "dave", SeatNumber: 495},
		Logger: quietLogger(),
	})
	res := job.Run(ctx)

	require.True(t, res.OK(), "%+v", res)
	assert.EqualValues(t, 1, res.SeatsReleased)
	assert.Equal(t, scheduler.PreAssignAssigned, res.PreAssignStatus)
	got := seatByNumber(t, store, 495)
	require.NotNil(t, got.BookedBy)
	assert.Equal(t, ids[1], *got.BookedBy)
	assertSymmetric(t, db)
}

func assertSymmetric(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var broken int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM seats s
		LEFT JOIN users u ON u.booked_seat_id = s.id
		WHERE (s.booked_by IS NULL) <> (u.id IS NULL)
		   OR (s.booked_by IS NOT NULL AND s.booked_by <> u.id)`).Scan(&broken)
	require.NoError(t, err)
	assert.Zero(t, broken, "seat/user references disagree")
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
