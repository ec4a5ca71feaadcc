package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-booking/internal/booking"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var _ booking.Store = (*DB)(nil)

// DB implements booking.Store on bun. Bun is either the pool or an open
// transaction, so the same methods serve both.
type DB struct {
	Bun bun.IDB
}

func New(db bun.IDB) *DB {
	return &DB{Bun: db}
}

// InTx opens a transaction, or a savepoint when d is already transactional.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, st booking.Store) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx})
	})
}

func (d *DB) isPostgres() bool {
	return d.Bun.Dialect().Name() == dialect.PG
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", booking.ErrNotFound, what, id)
	}
	return err
}

func checkAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", booking.ErrNotFound, what, id)
	}
	return nil
}
