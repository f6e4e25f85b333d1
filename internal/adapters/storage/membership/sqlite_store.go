package membership

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/membership"
)

// Membership dates keep their zone offset; the anchor day depends on it.
const dateLayout = time.RFC3339Nano

const selectColumns = "SELECT id, user_id, plan_id, status, start_date, end_date, auto_renewal, membership_data, created_at FROM user_membership"

// SQLiteStore implements Store using SQLite.
// Credits live in the membership_data JSON column and are changed with
// single conditional statements so concurrent bookings cannot overdraw.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new membership store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a membership by its ID.
// PRE: id is non-empty
// POST: Returns the membership or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Membership, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	m, err := scanMembership(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Membership{}, fmt.Errorf("membership not found: %w", err)
	}
	return m, err
}

// Save persists a membership.
// PRE: m has been validated
// POST: membership is inserted or updated
func (s *SQLiteStore) Save(ctx context.Context, m domain.Membership) error {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("encode membership data: %w", err)
	}
	var endDate any
	if !m.EndDate.IsZero() {
		endDate = m.EndDate.Format(dateLayout)
	}
	_, err = storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO user_membership (id, user_id, plan_id, status, start_date, end_date, auto_renewal, membership_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   plan_id=excluded.plan_id, status=excluded.status, start_date=excluded.start_date,
		   end_date=excluded.end_date, auto_renewal=excluded.auto_renewal,
		   membership_data=excluded.membership_data`,
		m.ID, m.UserID, m.PlanID, m.Status, m.StartDate.Format(dateLayout), endDate,
		m.AutoRenewal, string(data), storage.FormatTime(m.CreatedAt))
	return err
}

// ListByUser returns every membership a user holds, newest first.
// PRE: userID is non-empty
// POST: Returns memberships in any status
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	return s.list(ctx, selectColumns+" WHERE user_id = ? ORDER BY created_at DESC", userID)
}

// ListByStatus returns memberships in the given status, oldest first.
// PRE: status is non-empty
// POST: Returns matching memberships
func (s *SQLiteStore) ListByStatus(ctx context.Context, status string) ([]domain.Membership, error) {
	return s.list(ctx, selectColumns+" WHERE status = ? ORDER BY created_at ASC", status)
}

// DecrementCredit takes one credit if the balance is positive.
// PRE: id is non-empty
// POST: balance reduced by 1 and true returned, or unchanged and false
// INVARIANT: the balance never goes below zero
func (s *SQLiteStore) DecrementCredit(ctx context.Context, id string) (bool, error) {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE user_membership
		 SET membership_data = json_set(membership_data, '$.remainingCredits',
		   json_extract(membership_data, '$.remainingCredits') - 1)
		 WHERE id = ? AND COALESCE(json_extract(membership_data, '$.remainingCredits'), 0) > 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementCredit returns one credit to the balance.
// PRE: id is non-empty
// POST: balance increased by 1; error wrapping sql.ErrNoRows if the membership is gone
func (s *SQLiteStore) IncrementCredit(ctx context.Context, id string) error {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE user_membership
		 SET membership_data = json_set(membership_data, '$.remainingCredits',
		   COALESCE(json_extract(membership_data, '$.remainingCredits'), 0) + 1)
		 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("membership %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ResetCredits sets the balance and stamps the refill time.
// PRE: amount >= 0
// POST: remainingCredits = amount, lastRefillAt = refilledAt
func (s *SQLiteStore) ResetCredits(ctx context.Context, id string, amount int, refilledAt time.Time) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE user_membership
		 SET membership_data = json_set(membership_data, '$.remainingCredits', ?, '$.lastRefillAt', ?)
		 WHERE id = ?`, amount, refilledAt.Format(time.RFC3339Nano), id)
	return err
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(scan func(dest ...any) error) (domain.Membership, error) {
	var m domain.Membership
	var startDate, data, createdAt string
	var endDate sql.NullString
	if err := scan(&m.ID, &m.UserID, &m.PlanID, &m.Status, &startDate, &endDate, &m.AutoRenewal, &data, &createdAt); err != nil {
		return domain.Membership{}, err
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
			return domain.Membership{}, fmt.Errorf("decode membership data for %s: %w", m.ID, err)
		}
	}
	m.StartDate, _ = time.Parse(dateLayout, startDate)
	if endDate.Valid && endDate.String != "" {
		m.EndDate, _ = time.Parse(dateLayout, endDate.String)
	}
	m.CreatedAt, _ = storage.ParseTime(createdAt)
	return m, nil
}
