// Package scheduler runs the daily seat release: every booking is cleared
// at a fixed wall-clock instant and an optional designated user is then
// pre-assigned a designated seat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vkamat93/seat-booking-app/internal/metrics"
	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/queue"
	"github.com/vkamat93/seat-booking-app/internal/repository"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

// Booker performs the pre-assignment with the same effects as a user
// booking.
type Booker interface {
	Assign(ctx context.Context, userID, seatID uint64) (*model.SeatView, error)
}

// PreAssignTarget names the user and seat to bind after the release.  The
// zero value disables the step.
type PreAssignTarget struct {
	Username   string
	SeatNumber int
}

func (t PreAssignTarget) Enabled() bool { return t.Username != "" && t.SeatNumber > 0 }

// PreAssignStatus is the outcome of step 2.
type PreAssignStatus string

const (
	PreAssignDisabled PreAssignStatus = "disabled"
	PreAssignNotRun   PreAssignStatus = "not_run"
	PreAssignAssigned PreAssignStatus = "assigned"
	PreAssignSkipped  PreAssignStatus = "skipped"
	PreAssignFailed   PreAssignStatus = "failed"
)

// Skip reasons.
const (
	ReasonUserNotFound    = "user not found"
	ReasonSeatNotFound    = "seat not found"
	ReasonSeatUnavailable = "seat no longer free"
	ReasonUserHoldsSeat   = "user already holds a seat"
	ReasonReleaseFailed   = "bulk release failed"
)

// Result summarizes one run.
type Result struct {
	StartedAt       time.Time
	SeatsReleased   int64
	UsersUpdated    int64
	ReleaseErr      error
	PreAssignStatus PreAssignStatus
	PreAssignReason string
	PreAssignErr    error
}

// OK reports whether the run completed without an error.  Skips are not
// errors.
func (r Result) OK() bool { return r.ReleaseErr == nil && r.PreAssignErr == nil }

// ReleaseJob is one firing of the daily reset.
type ReleaseJob struct {
	tx      repository.Transactor
	seats   repository.SeatStore
	users   repository.UserStore
	booker  Booker
	target  PreAssignTarget
	events  service.EventPublisher
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// ReleaseJobDeps groups the collaborators of a ReleaseJob.  Events,
// Metrics and Logger are optional.
type ReleaseJobDeps struct {
	Tx      repository.Transactor
	Seats   repository.SeatStore
	Users   repository.UserStore
	Booker  Booker
	Target  PreAssignTarget
	Events  service.EventPublisher
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

func NewReleaseJob(d ReleaseJobDeps) *ReleaseJob {
	j := &ReleaseJob{
		tx:      d.Tx,
		seats:   d.Seats,
		users:   d.Users,
		booker:  d.Booker,
		target:  d.Target,
		events:  d.Events,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     time.Now,
	}
	if j.metrics == nil {
		j.metrics = metrics.Noop{}
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j
}

// Run executes the bulk release and then the pre-assignment.  It never
// panics and never returns an error; failures are recorded in the Result
// and logged.
func (j *ReleaseJob) Run(ctx context.Context) (res Result) {
	res.StartedAt = j.now()
	preAssigning := false
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("release job panic: %v", p)
			if preAssigning {
				res.PreAssignStatus, res.PreAssignErr = PreAssignFailed, err
			} else {
				res.ReleaseErr = err
				res.PreAssignStatus, res.PreAssignReason = PreAssignNotRun, ReasonReleaseFailed
			}
		}
		j.report(ctx, res)
	}()

	res.SeatsReleased, res.UsersUpdated, res.ReleaseErr = j.releaseAll(ctx)
	if res.ReleaseErr != nil {
		res.PreAssignStatus, res.PreAssignReason = PreAssignNotRun, ReasonReleaseFailed
		return res
	}
	preAssigning = true
	res.PreAssignStatus, res.PreAssignReason, res.PreAssignErr = j.preAssign(ctx)
	return res
}

// releaseAll frees every seat and clears every user reference in one
// transaction, seats first.
func (j *ReleaseJob) releaseAll(ctx context.Context) (seatsReleased, usersUpdated int64, err error) {
	err = j.tx.WithinTx(ctx, func(ctx context.Context, seats repository.SeatStore, users repository.UserStore) error {
		var err error
		if seatsReleased, err = seats.ReleaseAll(ctx); err != nil {
			return err
		}
		usersUpdated, err = users.ClearAllSeats(ctx)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return seatsReleased, usersUpdated, nil
}

func (j *ReleaseJob) preAssign(ctx context.Context) (PreAssignStatus, string, error) {
	if !j.target.Enabled() {
		return PreAssignDisabled, "", nil
	}

	user, err := j.users.GetByUsername(ctx, j.target.Username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return PreAssignSkipped, ReasonUserNotFound, nil
	}
	if err != nil {
		return PreAssignFailed, "", err
	}
	seat, err := j.seats.GetBySeatNumber(ctx, j.target.SeatNumber)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return PreAssignSkipped, ReasonSeatNotFound, nil
	}
	if err != nil {
		return PreAssignFailed, "", err
	}
	if !seat.IsFree() {
		return PreAssignSkipped, ReasonSeatUnavailable, nil
	}

	_, err = j.booker.Assign(ctx, user.ID, seat.ID)
	switch {
	case err == nil:
		return PreAssignAssigned, "", nil
	case errors.Is(err, service.ErrSeatAlreadyBooked):
		return PreAssignSkipped, ReasonSeatUnavailable, nil
	case errors.Is(err, service.ErrAlreadyHoldsSeat):
		return PreAssignSkipped, ReasonUserHoldsSeat, nil
	case errors.Is(err, service.ErrSeatNotFound):
		return PreAssignSkipped, ReasonSeatNotFound, nil
	case errors.Is(err, service.ErrUserNotFound):
		return PreAssignSkipped, ReasonUserNotFound, nil
	default:
		return PreAssignFailed, "", err
	}
}

func (j *ReleaseJob) report(ctx context.Context, res Result) {
	attrs := []any{
		slog.Int64("seats_released", res.SeatsReleased),
		slog.Int64("users_updated", res.UsersUpdated),
		slog.String("preassign_status", string(res.PreAssignStatus)),
		slog.Duration("elapsed", j.now().Sub(res.StartedAt)),
	}
	if res.PreAssignReason != "" {
		attrs = append(attrs, slog.String("preassign_reason", res.PreAssignReason))
	}
	if j.target.Enabled() {
		attrs = append(attrs,
			slog.String("preassign_username", j.target.Username),
			slog.Int("preassign_seat_number", j.target.SeatNumber))
	}

	status := "ok"
	switch {
	case res.ReleaseErr != nil:
		status = "release_failed"
		j.logger.Error("seat release failed", append(attrs, slog.Any("error", res.ReleaseErr))...)
	case res.PreAssignErr != nil:
		status = "preassign_failed"
		j.logger.Error("seat release completed, pre-assignment failed", append(attrs, slog.Any("error", res.PreAssignErr))...)
	default:
		j.logger.Info("seat release completed", attrs...)
	}
	j.metrics.RecordSchedulerRun(status, res.SeatsReleased, res.UsersUpdated)
	j.metrics.RecordPreAssign(string(res.PreAssignStatus))

	if j.events == nil {
		return
	}
	ev := queue.ResetEvent{
		EventID:         uuid.NewString(),
		Type:            queue.RoutingSeatsReset,
		SeatsReleased:   res.SeatsReleased,
		UsersUpdated:    res.UsersUpdated,
		PreAssignStatus: string(res.PreAssignStatus),
		PreAssignReason: res.PreAssignReason,
		OccurredAt:      j.now().UTC(),
	}
	if err := firstErr(res.ReleaseErr, res.PreAssignErr); err != nil {
		ev.Error = err.Error()
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := j.events.Publish(pctx, queue.RoutingSeatsReset, ev); err != nil {
		j.logger.Warn("publish reset event failed", slog.Any("error", err))
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
