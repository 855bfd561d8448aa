// Package database holds the Postgres connection pool and the transaction
// helper shared by every repository.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock. Repositories
// take one per call so the same method runs inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a Querier that can open transactions.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error or panic rolls back every statement fn issued.
func WithTx(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("database: commit tx: %w", err)
	}
	return nil
}

// IsTransient reports whether err is a conflict Postgres expects callers to
// retry: serialization failure, deadlock, lock or statement timeout.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return true
		}
	}
	return false
}

// Transactor is a Querier that can also run work in a transaction.
type Transactor interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// DB adapts a Pool to Transactor.
type DB struct {
	Pool
}

// NewDB wraps pool.
func NewDB(pool Pool) *DB {
	if pool == nil {
		panic("database: pool required")
	}
	return &DB{Pool: pool}
}

// InTx runs fn in a transaction; see WithTx.
func (db *DB) InTx(ctx context.Context, fn func(q Querier) error) error {
	return WithTx(ctx, db.Pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
