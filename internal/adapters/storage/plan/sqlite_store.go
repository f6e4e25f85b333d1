package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/plan"
)

const selectColumns = "SELECT id, name, booking_rule, includes_open_gym, is_active, priority_rank, created_at FROM membership_plan"

// SQLiteStore implements Store using SQLite. The booking rule is stored as JSON.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new plan store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a plan by its ID.
// PRE: id is non-empty
// POST: Returns the plan or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	p, err := scanPlan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Plan{}, fmt.Errorf("plan not found: %w", err)
	}
	return p, err
}

// Save persists a plan.
// PRE: p has been validated
// POST: plan is inserted or updated
func (s *SQLiteStore) Save(ctx context.Context, p domain.Plan) error {
	rule, err := json.Marshal(p.Rule)
	if err != nil {
		return fmt.Errorf("encode booking rule: %w", err)
	}
	_, err = storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO membership_plan (id, name, booking_rule, includes_open_gym, is_active, priority_rank, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, booking_rule=excluded.booking_rule,
		   includes_open_gym=excluded.includes_open_gym, is_active=excluded.is_active,
		   priority_rank=excluded.priority_rank`,
		p.ID, p.Name, string(rule), p.IncludesOpenGym, p.IsActive, p.PriorityRank, storage.FormatTime(p.CreatedAt))
	return err
}

// List returns plans ordered by priority rank, highest first.
// PRE: none
// POST: Returns all plans, or only active ones when filter.ActiveOnly
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Plan, error) {
	query := selectColumns
	if filter.ActiveOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY priority_rank DESC, created_at DESC"

	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(scan func(dest ...any) error) (domain.Plan, error) {
	var p domain.Plan
	var rule, createdAt string
	if err := scan(&p.ID, &p.Name, &rule, &p.IncludesOpenGym, &p.IsActive, &p.PriorityRank, &createdAt); err != nil {
		return domain.Plan{}, err
	}
	if err := json.Unmarshal([]byte(rule), &p.Rule); err != nil {
		return domain.Plan{}, fmt.Errorf("decode booking rule for plan %s: %w", p.ID, err)
	}
	p.CreatedAt, _ = storage.ParseTime(createdAt)
	return p, nil
}
