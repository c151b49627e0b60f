package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes surfaced as domain sentinels.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

var (
	// ErrDuplicate marks a unique-key collision.
	ErrDuplicate = errors.New("duplicate key")
	// ErrBookingOverlap marks a violation of the confirmed-booking exclusion constraint.
	ErrBookingOverlap = errors.New("booking overlaps a confirmed booking")
)

// Transactor runs units of work against PostgreSQL.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor constructs a transactor.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn inside a transaction. Any error from fn, or a panic, rolls
// the whole transaction back.
func (t *Transactor) WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(exec sqlx.ExtContext) error) error {
	tx, err := t.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapPQError(err))
	}
	commit = true
	return nil
}

// mapPQError translates constraint violations into sentinels the service layer can branch on.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pgExclusionViolation:
		return fmt.Errorf("%w: %s", ErrBookingOverlap, pqErr.Message)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
	default:
		return err
	}
}

func orDB(exec sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
