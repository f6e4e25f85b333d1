package audit

import (
	"context"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/audit"
)

const selectColumns = "SELECT id, occurred_at, category, action, actor_id, actor_role, subject_id, resource_type, resource_id, description, ip_address FROM audit_event"

// SQLiteStore implements the audit Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists an audit event.
// PRE: event has been validated
// POST: Event is persisted
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO audit_event (id, occurred_at, category, action, actor_id, actor_role, subject_id, resource_type, resource_id, description, ip_address)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, storage.FormatTime(e.OccurredAt), string(e.Category), string(e.Action),
		e.ActorID, e.ActorRole, e.SubjectID, e.ResourceType, e.ResourceID, e.Description, e.IPAddress)
	return err
}

// List returns audit events matching filter, newest first.
// PRE: limit > 0
// POST: Returns up to limit events
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	query := selectColumns + " WHERE 1=1"
	var args []any

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}
	if filter.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filter.ActorID)
	}
	if filter.ResourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, filter.ResourceID)
	}
	if !filter.From.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND occurred_at < ?"
		args = append(args, storage.FormatTime(filter.To))
	}

	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var occurredAt string
		if err := rows.Scan(&e.ID, &occurredAt, &e.Category, &e.Action, &e.ActorID, &e.ActorRole,
			&e.SubjectID, &e.ResourceType, &e.ResourceID, &e.Description, &e.IPAddress); err != nil {
			return nil, err
		}
		e.OccurredAt, _ = storage.ParseTime(occurredAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
