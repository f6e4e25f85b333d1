package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/account"
)

const selectColumns = "SELECT id, email, display_name, password_hash, role, created_at, last_active_at, failed_logins, locked_until FROM account"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an account.
// POST: Returns an error wrapping sql.ErrNoRows if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by address, ignoring case and surrounding space.
// POST: Returns an error wrapping sql.ErrNoRows if not found
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.getOne(ctx, "email = ? COLLATE NOCASE", strings.TrimSpace(email))
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg string) (domain.Account, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx, selectColumns+" WHERE "+where, arg)
	a, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("account not found: %w", err)
	}
	return a, err
}

// Save inserts or updates an account. created_at is never rewritten.
// PRE: a has been validated
func (s *SQLiteStore) Save(ctx context.Context, a domain.Account) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO account (id, email, display_name, password_hash, role, created_at, last_active_at, failed_logins, locked_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, display_name=excluded.display_name,
		   password_hash=excluded.password_hash, role=excluded.role,
		   last_active_at=excluded.last_active_at,
		   failed_logins=excluded.failed_logins, locked_until=excluded.locked_until`,
		a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Role,
		storage.FormatTime(a.CreatedAt), optionalTime(a.LastActiveAt),
		a.FailedLogins, optionalTime(a.LockedUntil))
	return err
}

// TouchLastActive stamps booking activity without loading the account.
func (s *SQLiteStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		"UPDATE account SET last_active_at = ? WHERE id = ?", storage.FormatTime(at), id)
	return err
}

// List returns matching accounts, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var conds []string
	var args []any
	if filter.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, filter.Role)
	}
	if !filter.InactiveBefore.IsZero() {
		conds = append(conds, "(last_active_at IS NULL OR last_active_at < ?)")
		args = append(args, storage.FormatTime(filter.InactiveBefore))
	}

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// SQLite treats LIMIT -1 as unbounded
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Count returns the number of accounts of any role.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := storage.Conn(ctx, s.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&n)
	return n, err
}

func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var a domain.Account
	var createdAt string
	var lastActive, lockedUntil sql.NullString
	if err := scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Role,
		&createdAt, &lastActive, &a.FailedLogins, &lockedUntil); err != nil {
		return domain.Account{}, err
	}
	a.CreatedAt, _ = storage.ParseTime(createdAt)
	if lastActive.Valid {
		a.LastActiveAt, _ = storage.ParseTime(lastActive.String)
	}
	if lockedUntil.Valid {
		a.LockedUntil, _ = storage.ParseTime(lockedUntil.String)
	}
	return a, nil
}

// optionalTime maps the zero time to NULL.
func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return storage.FormatTime(t)
}
