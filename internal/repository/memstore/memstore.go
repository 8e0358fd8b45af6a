// Package memstore is an in-memory implementation of the repository
// interfaces for tests.  Transactions are serialized by a single mutex and
// work on a copy of the data, so an error (or panic) inside WithinTx
// discards every write made by that transaction.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/repository"
)

type data struct {
	seats      map[uint64]model.Seat
	users      map[uint64]model.User
	nextSeatID uint64
	nextUserID uint64
}

func (d *data) clone() *data {
	c := &data{
		seats:      make(map[uint64]model.Seat, len(d.seats)),
		users:      make(map[uint64]model.User, len(d.users)),
		nextSeatID: d.nextSeatID,
		nextUserID: d.nextUserID,
	}
	for k, v := range d.seats {
		c.seats[k] = copySeat(v)
	}
	for k, v := range d.users {
		c.users[k] = copyUser(v)
	}
	return c
}

// Store holds committed state.
type Store struct {
	mu sync.Mutex
	d  *data

	// FailOn, when set, is consulted before every store operation and its
	// error is returned instead of running the operation.
	FailOn func(op string) error

	// BeforeOp, when set, runs before every store operation with the data
	// that operation is about to see.  Tests use it to simulate a writer
	// slipping in between two reads.
	BeforeOp func(op string, st *State)
}

// State is the data visible to one store operation.
type State struct{ d *data }

// MoveUser rebinds userID to seatID, freeing whatever seat it held before.
// Both sides of the reference stay consistent.
func (st *State) MoveUser(userID, seatID uint64) {
	u, ok := st.d.users[userID]
	if !ok {
		return
	}
	if u.BookedSeatID != nil {
		if old, ok := st.d.seats[*u.BookedSeatID]; ok {
			old.Status, old.BookedBy, old.BookedAt = model.SeatFree, nil, nil
			st.d.seats[old.ID] = old
		}
	}
	seat, ok := st.d.seats[seatID]
	if !ok {
		return
	}
	at := time.Now().UTC()
	owner := userID
	seat.Status, seat.BookedBy, seat.BookedAt = model.SeatBooked, &owner, &at
	st.d.seats[seatID] = seat
	id := seatID
	u.BookedSeatID = &id
	st.d.users[userID] = u
}

func New() *Store {
	return &Store{d: &data{seats: map[uint64]model.Seat{}, users: map[uint64]model.User{}}}
}

// WithinTx runs fn against a private copy of the data and publishes the
// copy only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.d.clone()
	v := &view{s: s, d: work}
	if err := fn(ctx, &SeatStore{v: v}, &UserStore{v: v}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d = work
	return nil
}

// Seats returns a seat store operating on committed state.
func (s *Store) Seats() *SeatStore { return &SeatStore{v: &view{s: s}} }

// Users returns a user store operating on committed state.
func (s *Store) Users() *UserStore { return &UserStore{v: &view{s: s}} }

// AddSeat inserts a free seat and returns its id.
func (s *Store) AddSeat(number, row, position int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.nextSeatID++
	id := s.d.nextSeatID
	s.d.seats[id] = model.Seat{ID: id, SeatNumber: number, Row: row, Position: position, Status: model.SeatFree}
	return id
}

// AddUser inserts a user without a seat and returns its id.
func (s *Store) AddUser(username string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.nextUserID++
	id := s.d.nextUserID
	s.d.users[id] = model.User{ID: id, Username: strings.ToLower(username), CreatedAt: time.Now().UTC()}
	return id
}

// Seat returns a snapshot of seat id.
func (s *Store) Seat(id uint64) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySeat(s.d.seats[id])
}

// User returns a snapshot of user id.
func (s *Store) User(id uint64) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.d.users[id])
}

// CheckInvariants verifies status/owner agreement, exclusivity and the
// seat/user back references.
func (s *Store) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := map[uint64]uint64{}
	for _, u := range s.d.users {
		if u.BookedSeatID == nil {
			continue
		}
		seatID := *u.BookedSeatID
		if prev, dup := holders[seatID]; dup {
			return fmt.Errorf("seat %d referenced by users %d and %d", seatID, prev, u.ID)
		}
		holders[seatID] = u.ID
		seat, ok := s.d.seats[seatID]
		if !ok || seat.BookedBy == nil || *seat.BookedBy != u.ID {
			return fmt.Errorf("user %d references seat %d which is not booked by them", u.ID, seatID)
		}
	}
	for _, seat := range s.d.seats {
		booked := seat.Status == model.SeatBooked
		if booked != (seat.BookedBy != nil) {
			return fmt.Errorf("seat %d status %s disagrees with owner", seat.ID, seat.Status)
		}
		if seat.BookedBy != nil {
			u, ok := s.d.users[*seat.BookedBy]
			if !ok || u.BookedSeatID == nil || *u.BookedSeatID != seat.ID {
				return fmt.Errorf("seat %d owner %d does not reference it", seat.ID, *seat.BookedBy)
			}
		}
	}
	return nil
}

type view struct {
	s *Store
	d *data // nil when bound to committed state
}

func (v *view) do(op string, fn func(d *data) error) error {
	if v.d == nil {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	if v.s.FailOn != nil {
		if err := v.s.FailOn(op); err != nil {
			return err
		}
	}
	target := v.s.d
	if v.d != nil {
		target = v.d
	}
	if v.s.BeforeOp != nil {
		v.s.BeforeOp(op, &State{d: target})
	}
	return fn(target)
}

// SeatStore implements repository.SeatStore.
type SeatStore struct{ v *view }

func (st *SeatStore) Count(ctx context.Context) (n int64, err error) {
	err = st.v.do("seats.Count", func(d *data) error {
		n = int64(len(d.seats))
		return nil
	})
	return n, err
}

func (st *SeatStore) CreateBulk(ctx context.Context, seats []model.Seat) error {
	return st.v.do("seats.CreateBulk", func(d *data) error {
		for _, s := range seats {
			d.nextSeatID++
			d.seats[d.nextSeatID] = model.Seat{ID: d.nextSeatID, SeatNumber: s.SeatNumber, Row: s.Row, Position: s.Position, Status: model.SeatFree}
		}
		return nil
	})
}

func (st *SeatStore) GetByIDForUpdate(ctx context.Context, id uint64) (out *model.Seat, err error) {
	err = st.v.do("seats.GetByIDForUpdate", func(d *data) error {
		s, ok := d.seats[id]
		if !ok {
			return repository.ErrSeatNotFound
		}
		c := copySeat(s)
		out = &c
		return nil
	})
	return out, err
}

func (st *SeatStore) GetBySeatNumber(ctx context.Context, number int) (out *model.Seat, err error) {
	err = st.v.do("seats.GetBySeatNumber", func(d *data) error {
		for _, s := range d.seats {
			if s.SeatNumber == number {
				c := copySeat(s)
				out = &c
				return nil
			}
		}
		return repository.ErrSeatNotFound
	})
	return out, err
}

func (st *SeatStore) MarkBooked(ctx context.Context, seatID, userID uint64, at time.Time) error {
	return st.v.do("seats.MarkBooked", func(d *data) error {
		s, ok := d.seats[seatID]
		if !ok || s.Status != model.SeatFree {
			return repository.ErrSeatNotFree
		}
		uid, t := userID, at
		s.Status, s.BookedBy, s.BookedAt = model.SeatBooked, &uid, &t
		d.seats[seatID] = s
		return nil
	})
}

func (st *SeatStore) MarkFree(ctx context.Context, seatID, userID uint64) error {
	return st.v.do("seats.MarkFree", func(d *data) error {
		s, ok := d.seats[seatID]
		if !ok || s.BookedBy == nil || *s.BookedBy != userID {
			return repository.ErrSeatNotFree
		}
		s.Status, s.BookedBy, s.BookedAt = model.SeatFree, nil, nil
		d.seats[seatID] = s
		return nil
	})
}

func (st *SeatStore) ReleaseAll(ctx context.Context) (n int64, err error) {
	err = st.v.do("seats.ReleaseAll", func(d *data) error {
		for id, s := range d.seats {
			if s.Status == model.SeatBooked {
				s.Status, s.BookedBy, s.BookedAt = model.SeatFree, nil, nil
				d.seats[id] = s
				n++
			}
		}
		return nil
	})
	return n, err
}

func (st *SeatStore) ListWithOwners(ctx context.Context) (out []model.SeatView, err error) {
	err = st.v.do("seats.ListWithOwners", func(d *data) error {
		for _, s := range d.seats {
			out = append(out, project(d, s))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Position < out[j].Position
	})
	return out, err
}

func (st *SeatStore) GetWithOwner(ctx context.Context, id uint64) (out *model.SeatView, err error) {
	err = st.v.do("seats.GetWithOwner", func(d *data) error {
		s, ok := d.seats[id]
		if !ok {
			return repository.ErrSeatNotFound
		}
		p := project(d, s)
		out = &p
		return nil
	})
	return out, err
}

// UserStore implements repository.UserStore.
type UserStore struct{ v *view }

func (us *UserStore) Create(ctx context.Context, u *model.User) error {
	return us.v.do("users.Create", func(d *data) error {
		u.Username = strings.ToLower(strings.TrimSpace(u.Username))
		for _, existing := range d.users {
			if existing.Username == u.Username {
				return repository.ErrUsernameTaken
			}
		}
		d.nextUserID++
		u.ID = d.nextUserID
		u.CreatedAt = time.Now().UTC()
		d.users[u.ID] = copyUser(*u)
		return nil
	})
}

func (us *UserStore) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return us.get("users.GetByID", id)
}

func (us *UserStore) GetByIDForUpdate(ctx context.Context, id uint64) (*model.User, error) {
	return us.get("users.GetByIDForUpdate", id)
}

func (us *UserStore) get(op string, id uint64) (out *model.User, err error) {
	err = us.v.do(op, func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		c := copyUser(u)
		out = &c
		return nil
	})
	return out, err
}

func (us *UserStore) GetByUsername(ctx context.Context, username string) (out *model.User, err error) {
	username = strings.ToLower(strings.TrimSpace(username))
	err = us.v.do("users.GetByUsername", func(d *data) error {
		for _, u := range d.users {
			if u.Username == username {
				c := copyUser(u)
				out = &c
				return nil
			}
		}
		return repository.ErrUserNotFound
	})
	return out, err
}

func (us *UserStore) AssignSeat(ctx context.Context, userID, seatID uint64) error {
	return us.v.do("users.AssignSeat", func(d *data) error {
		u, ok := d.users[userID]
		if !ok || u.BookedSeatID != nil {
			return repository.ErrUserHasSeat
		}
		sid := seatID
		u.BookedSeatID = &sid
		d.users[userID] = u
		return nil
	})
}

func (us *UserStore) ClearSeat(ctx context.Context, userID, seatID uint64) error {
	return us.v.do("users.ClearSeat", func(d *data) error {
		u, ok := d.users[userID]
		if !ok || u.BookedSeatID == nil || *u.BookedSeatID != seatID {
			return repository.ErrUserHasSeat
		}
		u.BookedSeatID = nil
		d.users[userID] = u
		return nil
	})
}

func (us *UserStore) ClearAllSeats(ctx context.Context) (n int64, err error) {
	err = us.v.do("users.ClearAllSeats", func(d *data) error {
		for id, u := range d.users {
			if u.BookedSeatID != nil {
				u.BookedSeatID = nil
				d.users[id] = u
				n++
			}
		}
		return nil
	})
	return n, err
}

func (us *UserStore) UpdatePassword(ctx context.Context, userID uint64, hash string, mustChange bool) error {
	return us.v.do("users.UpdatePassword", func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return repository.ErrUserNotFound
		}
		u.PasswordHash, u.MustChangePassword = hash, mustChange
		d.users[userID] = u
		return nil
	})
}

func project(d *data, s model.Seat) model.SeatView {
	v := model.SeatView{ID: s.ID, SeatNumber: s.SeatNumber, Row: s.Row, Position: s.Position, Status: s.Status}
	if s.BookedBy != nil {
		v.BookedBy = &model.SeatOwner{ID: *s.BookedBy, Username: d.users[*s.BookedBy].Username}
	}
	if s.BookedAt != nil {
		t := *s.BookedAt
		v.BookedAt = &t
	}
	return v
}

func copySeat(s model.Seat) model.Seat {
	if s.BookedBy != nil {
		id := *s.BookedBy
		s.BookedBy = &id
	}
	if s.BookedAt != nil {
		t := *s.BookedAt
		s.BookedAt = &t
	}
	return s
}

func copyUser(u model.User) model.User {
	if u.BookedSeatID != nil {
		id := *u.BookedSeatID
		u.BookedSeatID = &id
	}
	return u
}

var (
	_ repository.Transactor = (*Store)(nil)
	_ repository.SeatStore  = (*SeatStore)(nil)
	_ repository.UserStore  = (*UserStore)(nil)
)
