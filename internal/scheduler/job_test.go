package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/queue"
	"github.com/vkamat93/seat-booking-app/internal/repository/memstore"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	last any
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.last = payload
	return nil
}

type runRecorder struct {
	runs      []string
	preAssign []string
}

func (r *runRecorder) RecordBooking(string) {}

func (r *runRecorder) RecordRelease(string) {}

func (r *runRecorder) ObserveTx(string, time.Duration) {}

func (r *runRecorder) RecordPreAssign(status string) {
	r.preAssign = append(r.preAssign, status)
}

func (r *runRecorder) RecordSchedulerRun(status string, _, _ int64) {
	r.runs = append(r.runs, status)
}

type bookerFunc func(ctx context.Context, userID, seatID uint64) (*model.SeatView, error)

func (f bookerFunc) Assign(ctx context.Context, userID, seatID uint64) (*model.SeatView, error) {
	return f(ctx, userID, seatID)
}

type jobFixture struct {
	store   *memstore.Store
	booking *service.BookingService
	pub     *recordingPublisher
	rec     *runRecorder
	seats   map[int]uint64
	users   map[string]uint64
}

// newJobFixture seeds seats 494 and 495 plus users carol, dave and erin,
// with carol holding 495 and erin holding 494.
func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	f := &jobFixture{
		store: memstore.New(),
		pub:   &recordingPublisher{},
		rec:   &runRecorder{},
		seats: map[int]uint64{},
		users: map[string]uint64{},
	}
	f.booking = service.NewBookingService(f.store, f.pub, nil, nil)
	f.seats[494] = f.store.AddSeat(494, 4, 4)
	f.seats[495] = f.store.AddSeat(495, 4, 5)
	for _, name := range []string{"carol", "dave", "erin"} {
		f.users[name] = f.store.AddUser(name)
	}
	ctx := context.Background()
	_, err := f.booking.Book(ctx, f.users["carol"], f.seats[495])
	require.NoError(t, err)
	_, err = f.booking.Book(ctx, f.users["erin"], f.seats[494])
	require.NoError(t, err)
	f.pub.keys = nil
	return f
}

func (f *jobFixture) job(target PreAssignTarget, booker Booker) *ReleaseJob {
	if booker == nil {
		booker = f.booking
	}
	return NewReleaseJob(ReleaseJobDeps{
		Tx:      f.store,
		Seats:   f.store.Seats(),
		Users:   f.store.Users(),
		Booker:  booker,
		Target:  target,
		Events:  f.pub,
		Metrics: f.rec,
	})
}

func TestReleaseJob_ReleasesThenPreAssigns(t *testing.T) {
	f := newJobFixture(t)

	res := f.job(PreAssignTarget{Username: "dave", SeatNumber: 495}, nil).Run(context.Background())

	require.True(t, res.OK())
	assert.EqualValues(t, 2, res.SeatsReleased)
	assert.EqualValues(t, 2, res.UsersUpdated)
	assert.Equal(t, PreAssignAssigned, res.PreAssignStatus)

	seat := f.store.Seat(f.seats[495])
	assert.Equal(t, model.SeatBooked, seat.Status)
	require.NotNil(t, seat.BookedBy)
	assert.Equal(t, f.users["dave"], *seat.BookedBy)
	assert.Nil(t, f.store.User(f.users["carol"]).BookedSeatID)
	assert.Nil(t, f.store.User(f.users["erin"]).BookedSeatID)
	assert.True(t, f.store.Seat(f.seats[494]).IsFree())
	require.NoError(t, f.store.CheckInvariants())

	assert.Equal(t, []string{queue.RoutingSeatBooked, queue.RoutingSeatsReset}, f.pub.keys)
	ev, ok := f.pub.last.(queue.ResetEvent)
	require.True(t, ok)
	assert.EqualValues(t, 2, ev.SeatsReleased)
	assert.Equal(t, string(PreAssignAssigned), ev.PreAssignStatus)
	assert.Empty(t, ev.Error)

	assert.Equal(t, []string{"ok"}, f.rec.runs)
	assert.Equal(t, []string{"assigned"}, f.rec.preAssign)
}

func TestReleaseJob_UnknownUserSkips(t *testing.T) {
	f := newJobFixture(t)

	res := f.job(PreAssignTarget{Username: "ghost", SeatNumber: 495}, nil).Run(context.Background())

	require.True(t, res.OK())
	assert.EqualValues(t, 2, res.SeatsReleased)
	assert.Equal(t, PreAssignSkipped, res.PreAssignStatus)
	assert.Equal(t, ReasonUserNotFound, res.PreAssignReason)
	assert.True(t, f.store.Seat(f.seats[494]).IsFree())
	assert.True(t, f.store.Seat(f.seats[495]).IsFree())
	require.NoError(t, f.store.CheckInvariants())
}

func TestReleaseJob_UnknownSeatSkips(t *testing.T) {
	f := newJobFixture(t)

	res := f.job(PreAssignTarget{Username: "dave", SeatNumber: 999}, nil).Run(context.Background())

	require.True(t, res.OK())
	assert.Equal(t, PreAssignSkipped, res.PreAssignStatus)
	assert.Equal(t, ReasonSeatNotFound, res.PreAssignReason)
	assert.Nil(t, f.store.User(f.users["dave"]).BookedSeatID)
}

func TestReleaseJob_PreAssignConflictsSkip(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"seat rebooked", service.ErrSeatAlreadyBooked, ReasonSeatUnavailable},
		{"user holds seat", service.ErrAlreadyHoldsSeat, ReasonUserHoldsSeat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newJobFixture(t)
			booker := bookerFunc(func(context.Context, uint64, uint64) (*model.SeatView, error) {
				return nil, tc.err
			})

			res := f.job(PreAssignTarget{Username: "dave", SeatNumber: 495}, booker).Run(context.Background())

			require.True(t, res.OK())
			assert.Equal(t, PreAssignSkipped, res.PreAssignStatus)
			assert.Equal(t, tc.reason, res.PreAssignReason)
		})
	}
}

func TestReleaseJob_PreAssignInfraError(t *testing.T) {
	f := newJobFixture(t)
	booker := bookerFunc(func(context.Context, uint64, uint64) (*model.SeatView, error) {
		return nil, errors.New("connection reset")
	})

	res := f.job(PreAssignTarget{Username: "dave", SeatNumber: 495}, booker).Run(context.Background())

	assert.False(t, res.OK())
	assert.NoError(t, res.ReleaseErr)
	assert.Equal(t, PreAssignFailed, res.PreAssignStatus)
	assert.EqualError(t, res.PreAssignErr, "connection reset")
	assert.Equal(t, []string{"preassign_failed"}, f.rec.runs)
	assert.True(t, f.store.Seat(f.seats[495]).IsFree())
}

func TestReleaseJob_DisabledTarget(t *testing.T) {
	f := newJobFixture(t)

	res := f.job(PreAssignTarget{}, nil).Run(context.Background())

	require.True(t, res.OK())
	assert.Equal(t, PreAssignDisabled, res.PreAssignStatus)
	assert.EqualValues(t, 2, res.SeatsReleased)
	assert.Equal(t, []string{queue.RoutingSeatsReset}, f.pub.keys)
}

func TestReleaseJob_BulkReleaseFailureRollsBack(t *testing.T) {
	f := newJobFixture(t)
	f.store.FailOn = func(op string) error {
		if op == "users.ClearAllSeats" {
			return errors.New("lock wait timeout")
		}
		return nil
	}

	res := f.job(PreAssignTarget{Username: "dave", SeatNumber: 495}, nil).Run(context.Background())
	f.store.FailOn = nil

	assert.False(t, res.OK())
	assert.EqualError(t, res.ReleaseErr, "lock wait timeout")
	assert.Zero(t, res.SeatsReleased)
	assert.Equal(t, PreAssignNotRun, res.PreAssignStatus)
	assert.Equal(t, ReasonReleaseFailed, res.PreAssignReason)

	// seats.ReleaseAll ran inside the same transaction and was discarded.
	seat := f.store.Seat(f.seats[495])
	require.NotNil(t, seat.BookedBy)
	assert.Equal(t, f.users["carol"], *seat.BookedBy)
	require.NoError(t, f.store.CheckInvariants())

	ev, ok := f.pub.last.(queue.ResetEvent)
	require.True(t, ok)
	assert.Equal(t, "lock wait timeout", ev.Error)
	assert.Equal(t, []string{"release_failed"}, f.rec.runs)
}

func TestReleaseJob_RecoversPanic(t *testing.T) {
	f := newJobFixture(t)
	booker := bookerFunc(func(context.Context, uint64, uint64) (*model.SeatView, error) {
		panic("boom")
	})

	var res Result
	require.NotPanics(t, func() {
		res = f.job(PreAssignTarget{Username: "dave", SeatNumber: 495}, booker).Run(context.Background())
	})
	assert.NoError(t, res.ReleaseErr)
	assert.EqualValues(t, 2, res.SeatsReleased)
	assert.Equal(t, PreAssignFailed, res.PreAssignStatus)
	assert.ErrorContains(t, res.PreAssignErr, "boom")
}
