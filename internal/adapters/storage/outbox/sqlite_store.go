package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/outbox"
)

const selectColumns = `SELECT id, action_type, payload, status, attempts, max_attempts, next_attempt_at, last_attempted_at, created_at, external_id, error_message FROM outbox`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an entry.
// POST: Returns an error wrapping sql.ErrNoRows if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("outbox entry not found: %w", err)
	}
	return e, err
}

// Save inserts or updates an entry. Only delivery state changes on update.
// PRE: e has been validated
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	var lastAttempted string
	if !e.LastAttemptedAt.IsZero() {
		lastAttempted = storage.FormatTime(e.LastAttemptedAt)
	}
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO outbox (id, action_type, payload, status, attempts, max_attempts, next_attempt_at, last_attempted_at, created_at, external_id, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   next_attempt_at=excluded.next_attempt_at, last_attempted_at=excluded.last_attempted_at,
		   external_id=excluded.external_id, error_message=excluded.error_message`,
		e.ID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		storage.FormatTime(e.NextAttemptAt), lastAttempted, storage.FormatTime(e.CreatedAt),
		e.ExternalID, e.ErrorMessage)
	return err
}

func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	return s.list(ctx, selectColumns+` WHERE status IN (?, ?) AND next_attempt_at <= ? ORDER BY next_attempt_at, created_at LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, storage.FormatTime(now), limit)
}

func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]domain.Entry, error) {
	return s.list(ctx, selectColumns+` WHERE status IN (?, ?) ORDER BY created_at LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, limit)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error) {
	return s.list(ctx, selectColumns+` WHERE status = ? ORDER BY last_attempted_at DESC, created_at DESC LIMIT ?`,
		status, limit)
}

func (s *SQLiteStore) PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM outbox WHERE status IN (?, ?) AND created_at < ?`,
		domain.StatusDone, domain.StatusAbandoned, storage.FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	var next, lastAttempted, created string
	if err := scan(&e.ID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&next, &lastAttempted, &created, &e.ExternalID, &e.ErrorMessage); err != nil {
		return domain.Entry{}, err
	}
	e.NextAttemptAt, _ = storage.ParseTime(next)
	e.CreatedAt, _ = storage.ParseTime(created)
	if lastAttempted != "" {
		e.LastAttemptedAt, _ = storage.ParseTime(lastAttempted)
	}
	return e, nil
}
