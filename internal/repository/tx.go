package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with the transactional handle, and
// then commits on success or rolls back on error or panic.  Panics are
// rethrown after the rollback.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Store vends seat and user repositories backed by one MySQL pool and
// implements Transactor on top of it.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store for the given pool.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Seats returns a SeatRepo bound to the pool (no transaction).
func (s *Store) Seats() *SeatRepo { return NewSeatRepo(s.db) }

// Users returns a UserRepo bound to the pool (no transaction).
func (s *Store) Users() *UserRepo { return NewUserRepo(s.db) }

// WithinTx runs fn with seat and user repositories bound to one
// transaction.  A cancelled or expired ctx aborts the transaction and
// database/sql rolls it back.
func (s *Store) WithinTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, NewSeatRepo(tx), NewUserRepo(tx))
	})
}

var _ Transactor = (*Store)(nil)
