package ledger

import (
	"context"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/ledger"
)

const selectColumns = "SELECT id, membership_id, user_id, delta, type, registration_id, reason, created_at FROM credit_transaction"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new ledger store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append writes one ledger row.
// PRE: t has been validated
// POST: row inserted; existing rows are never modified
func (s *SQLiteStore) Append(ctx context.Context, t domain.Transaction) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO credit_transaction (id, membership_id, user_id, delta, type, registration_id, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MembershipID, t.UserID, t.Delta, t.Type, t.RegistrationID, t.Reason, storage.FormatTime(t.CreatedAt))
	return err
}

// ListByUser returns a user's most recent ledger rows, newest first.
// PRE: limit > 0
// POST: Returns up to limit rows
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return s.list(ctx, selectColumns+" WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", userID, limit)
}

// ListByMembership returns every ledger row of a membership, oldest first.
// PRE: membershipID is non-empty
// POST: Returns all rows
func (s *SQLiteStore) ListByMembership(ctx context.Context, membershipID string) ([]domain.Transaction, error) {
	return s.list(ctx, selectColumns+" WHERE membership_id = ? ORDER BY created_at ASC, id ASC", membershipID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var createdAt string
		if err := rows.Scan(&t.ID, &t.MembershipID, &t.UserID, &t.Delta, &t.Type, &t.RegistrationID, &t.Reason, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = storage.ParseTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
