package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vkamat93/seat-booking-app/internal/metrics"
	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/queue"
	"github.com/vkamat93/seat-booking-app/internal/repository"
)

// Event sources.
const (
	SourceUser      = "user"
	SourceScheduler = "scheduler"
)

// releaseAttempts bounds how often Release restarts when the user's seat
// reference moved between the unlocked read and the row locks.
const releaseAttempts = 3

const publishTimeout = 2 * time.Second

var errSeatMoved = errors.New("seat reference moved")

// BookingService binds seats to users.  Every transition touching both a
// seat and a user runs in one transaction; rows are always locked seat
// first, then user.
type BookingService struct {
	tx      repository.Transactor
	events  EventPublisher
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewBookingService wires a BookingService.  events, rec and logger may be
// nil.
func NewBookingService(tx repository.Transactor, events EventPublisher, rec metrics.Recorder, logger *slog.Logger) *BookingService {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingService{tx: tx, events: events, metrics: rec, logger: logger, now: time.Now}
}

// Book assigns seatID to userID.  bookedAt is kept at millisecond
// precision to match the column.  The checks run in this order inside the
// transaction: the user holds no seat, the seat exists, the seat is free.
// Concurrent calls for the same seat serialize on the seat row lock, so
// exactly one wins and the rest get ErrSeatAlreadyBooked.
func (s *BookingService) Book(ctx context.Context, userID, seatID uint64) (*model.SeatView, error) {
	return s.book(ctx, userID, seatID, SourceUser)
}

// Assign books seatID for userID on behalf of the system (the daily
// pre-assignment).  Effects and errors are identical to Book.
func (s *BookingService) Assign(ctx context.Context, userID, seatID uint64) (*model.SeatView, error) {
	return s.book(ctx, userID, seatID, SourceScheduler)
}

func (s *BookingService) book(ctx context.Context, userID, seatID uint64, source string) (*model.SeatView, error) {
	var view *model.SeatView
	start := time.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context, seats repository.SeatStore, users repository.UserStore) error {
		seat, err := seats.GetByIDForUpdate(ctx, seatID)
		if err != nil && !errors.Is(err, repository.ErrSeatNotFound) {
			return err
		}
		user, err := users.GetByIDForUpdate(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		switch {
		case user.HasSeat():
			return ErrAlreadyHoldsSeat
		case seat == nil:
			return ErrSeatNotFound
		case !seat.IsFree():
			return ErrSeatAlreadyBooked
		}

		at := s.now().UTC().Truncate(time.Millisecond)
		if err := seats.MarkBooked(ctx, seat.ID, user.ID, at); err != nil {
			if errors.Is(err, repository.ErrSeatNotFree) {
				return ErrSeatAlreadyBooked
			}
			return err
		}
		if err := users.AssignSeat(ctx, user.ID, seat.ID); err != nil {
			if errors.Is(err, repository.ErrUserHasSeat) {
				return ErrAlreadyHoldsSeat
			}
			return err
		}

		view = &model.SeatView{
			ID:         seat.ID,
			SeatNumber: seat.SeatNumber,
			Row:        seat.Row,
			Position:   seat.Position,
			Status:     model.SeatBooked,
			BookedBy:   &model.SeatOwner{ID: user.ID, Username: user.Username},
			BookedAt:   &at,
		}
		return nil
	})
	s.metrics.ObserveTx("book", time.Since(start))
	s.metrics.RecordBooking(bookResult(err))

	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("book seat %d for user %d: %w", seatID, userID, err)
	}

	s.logger.Info("seat booked",
		slog.Uint64("seat_id", view.ID),
		slog.Int("seat_number", view.SeatNumber),
		slog.Uint64("user_id", userID),
		slog.String("source", source))
	s.publish(ctx, queue.RoutingSeatBooked, queue.NewSeatEvent(
		queue.RoutingSeatBooked, view.ID, view.SeatNumber, userID, view.BookedBy.Username, source, *view.BookedAt))
	return view, nil
}

// Release frees the seat held by userID.  Calling it again without an
// intervening Book returns ErrNoSeatHeld and changes nothing.
func (s *BookingService) Release(ctx context.Context, userID uint64) error {
	var (
		released *model.Seat
		username string
		err      error
	)
	start := time.Now()
	for attempt := 1; attempt <= releaseAttempts; attempt++ {
		released, username, err = s.releaseOnce(ctx, userID)
		if !errors.Is(err, errSeatMoved) {
			break
		}
	}
	s.metrics.ObserveTx("release", time.Since(start))
	s.metrics.RecordRelease(releaseResult(err))

	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("release seat for user %d: %w", userID, err)
	}

	if released != nil {
		s.logger.Info("seat released",
			slog.Uint64("seat_id", released.ID),
			slog.Int("seat_number", released.SeatNumber),
			slog.Uint64("user_id", userID))
		s.publish(ctx, queue.RoutingSeatReleased, queue.NewSeatEvent(
			queue.RoutingSeatReleased, released.ID, released.SeatNumber, userID, username, SourceUser, s.now()))
	}
	return nil
}

// releaseOnce runs one release transaction.  The user's seat reference is
// read without a lock to learn which seat to lock first; after both rows
// are locked the reference is checked again.
func (s *BookingService) releaseOnce(ctx context.Context, userID uint64) (*model.Seat, string, error) {
	var (
		released *model.Seat
		username string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, seats repository.SeatStore, users repository.UserStore) error {
		user, err := users.GetByID(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if !user.HasSeat() {
			return ErrNoSeatHeld
		}
		seatID := *user.BookedSeatID

		seat, err := seats.GetByIDForUpdate(ctx, seatID)
		if err != nil && !errors.Is(err, repository.ErrSeatNotFound) {
			return err
		}
		locked, err := users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !locked.HasSeat() {
			return ErrNoSeatHeld
		}
		if *locked.BookedSeatID != seatID {
			return errSeatMoved
		}

		// A missing seat row still clears the user's reference.
		if seat != nil && seat.BookedBy != nil && *seat.BookedBy == userID {
			if err := seats.MarkFree(ctx, seatID, userID); err != nil {
				return err
			}
		}
		if err := users.ClearSeat(ctx, userID, seatID); err != nil {
			return err
		}
		released, username = seat, locked.Username
		return nil
	})
	return released, username, err
}

func (s *BookingService) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.logger.Warn("publish event failed", slog.String("routing_key", key), slog.Any("error", err))
	}
}

func bookResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyHoldsSeat):
		return "already_holds_seat"
	case errors.Is(err, ErrSeatNotFound):
		return "seat_not_found"
	case errors.Is(err, ErrSeatAlreadyBooked):
		return "seat_booked"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}

func releaseResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoSeatHeld):
		return "no_seat"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
