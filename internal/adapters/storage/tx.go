package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is the statement surface shared by SQLDB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (SQLDB)(nil)
)

type txKey struct{}

// Conn returns the transaction carried by ctx, or db when there is none.
// Stores call this for every statement so they join an enclosing Atomic block.
func Conn(ctx context.Context, db SQLDB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// UnitOfWork runs a function as one atomic unit.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner implements UnitOfWork with a database transaction.
type TxRunner struct {
	db SQLDB
}

var _ UnitOfWork = (*TxRunner)(nil)

// NewTxRunner creates a TxRunner over db.
func NewTxRunner(db SQLDB) *TxRunner {
	return &TxRunner{db: db}
}

// Atomic runs fn inside a transaction bound to the context it receives.
// PRE: fn only touches storage through stores that use Conn
// POST: committed when fn returns nil, rolled back otherwise
// INVARIANT: nested calls join the outer transaction
func (r *TxRunner) Atomic(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}
	if timed, ok := r.db.(*TimedDB); ok {
		start := time.Now()
		defer func() { timed.observe(ctx, "TX", start, err) }()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PassThrough is a UnitOfWork that runs fn directly; used by tests and
// callers that hold no database.
type PassThrough struct{}

// Atomic calls fn with ctx unchanged.
func (PassThrough) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
