package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

const defaultSlowQuery = 50 * time.Millisecond

// slowQueryThreshold reads GYMDESK_SLOW_QUERY_MS, falling back to 50ms.
func slowQueryThreshold() time.Duration {
	if n, err := strconv.Atoi(os.Getenv("GYMDESK_SLOW_QUERY_MS")); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return defaultSlowQuery
}

// TimedDB instruments a *sql.DB. Statements outside a transaction are timed
// one by one; a TxRunner over a TimedDB times each transaction as a whole
// under the label "TX", since booking writes run inside one.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	threshold time.Duration
}

var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps db. A nil collector only logs.
func NewTimedDB(db *sql.DB, collector *perf.Collector) *TimedDB {
	return &TimedDB{db: db, collector: collector, threshold: slowQueryThreshold()}
}

// StatementLabel reduces a query to "VERB table" so perf stats group by
// statement shape rather than by argument values.
func StatementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "EMPTY"
	}
	verb := strings.ToUpper(fields[0])
	marker := ""
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT", "REPLACE":
		marker = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return verb + " " + strings.Trim(fields[1], "`\"")
		}
		return verb
	default:
		return verb
	}
	for i, f := range fields[:len(fields)-1] {
		if strings.EqualFold(f, marker) {
			table, _, _ := strings.Cut(fields[i+1], "(")
			return verb + " " + strings.Trim(table, "`\"")
		}
	}
	return verb
}

// observe logs one timed unit and feeds the collector. sql.ErrNoRows is a
// normal lookup miss and is not reported as a failure.
func (t *TimedDB) observe(ctx context.Context, label string, start time.Time, err error) {
	elapsed := time.Since(start)
	ms := float64(elapsed.Microseconds()) / 1000.0

	attrs := []any{"op", label, "duration_ms", ms}
	switch {
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		slog.WarnContext(ctx, "query_failed", append(attrs, "error", err.Error())...)
	case elapsed >= t.threshold:
		slog.WarnContext(ctx, "slow_query", attrs...)
	default:
		slog.DebugContext(ctx, "query", attrs...)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{Kind: perf.KindQuery, Key: label, Duration: elapsed, At: start})
	}
}

func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.observe(ctx, StatementLabel(query), start, err)
	return result, err
}

func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe(ctx, StatementLabel(query), start, err)
	return rows, err
}

// QueryRowContext times the round trip; a scan error surfaces later and is not seen here.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe(ctx, StatementLabel(query), start, row.Err())
	return row
}

// BeginTx is untimed; the TxRunner records the whole transaction instead.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return t.db.BeginTx(ctx, opts)
}
