package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/registration"
)

const selectColumns = "SELECT id, course_id, user_id, status, registered_at, updated_at FROM course_registration"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new registration store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByCourseAndUser returns the single row for a user on a course.
// PRE: courseID and userID are non-empty
// POST: Returns the row or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByCourseAndUser(ctx context.Context, courseID, userID string) (domain.Registration, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		selectColumns+" WHERE course_id = ? AND user_id = ?", courseID, userID)
	r, err := scanRegistration(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registration{}, fmt.Errorf("registration not found: %w", err)
	}
	return r, err
}

// Upsert writes the row for (CourseID, UserID).
// PRE: r has been validated
// POST: a cancelled or existing row is updated in place and keeps its ID
// INVARIANT: at most one row per course and user
func (s *SQLiteStore) Upsert(ctx context.Context, r domain.Registration) (domain.Registration, error) {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.RegisteredAt
	}
	conn := storage.Conn(ctx, s.db)
	_, err := conn.ExecContext(ctx,
		`INSERT INTO course_registration (id, course_id, user_id, status, registered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(course_id, user_id) DO UPDATE SET
		   status=excluded.status, registered_at=excluded.registered_at, updated_at=excluded.updated_at`,
		r.ID, r.CourseID, r.UserID, r.Status, storage.FormatTime(r.RegisteredAt), storage.FormatTime(r.UpdatedAt))
	if err != nil {
		return domain.Registration{}, err
	}
	row := conn.QueryRowContext(ctx, selectColumns+" WHERE course_id = ? AND user_id = ?", r.CourseID, r.UserID)
	return scanRegistration(row.Scan)
}

// CountByStatus counts rows on a course with the given status.
// PRE: courseID is non-empty
// POST: Returns count >= 0
func (s *SQLiteStore) CountByStatus(ctx context.Context, courseID, status string) (int, error) {
	var n int
	err := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM course_registration WHERE course_id = ? AND status = ?", courseID, status).Scan(&n)
	return n, err
}

// CountUserRegisteredBetween counts a user's registered rows on courses dated in [fromDate, toDate).
// PRE: dates are YYYY-MM-DD
// POST: Returns count >= 0
func (s *SQLiteStore) CountUserRegisteredBetween(ctx context.Context, userID, fromDate, toDate string) (int, error) {
	var n int
	err := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM course_registration r
		 JOIN course c ON c.id = r.course_id
		 WHERE r.user_id = ? AND r.status = ? AND c.course_date >= ? AND c.course_date < ?`,
		userID, domain.StatusRegistered, fromDate, toDate).Scan(&n)
	return n, err
}

// ListByCourse returns a course's rows with the given status, oldest first.
// PRE: courseID is non-empty
// POST: Returns rows ordered by registered_at
func (s *SQLiteStore) ListByCourse(ctx context.Context, courseID, status string) ([]domain.Registration, error) {
	return s.list(ctx, selectColumns+" WHERE course_id = ? AND status = ? ORDER BY registered_at ASC, id ASC", courseID, status)
}

// ListByUser returns a user's rows, newest first.
// PRE: userID is non-empty
// POST: Returns rows in any status
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]domain.Registration, error) {
	return s.list(ctx, selectColumns+" WHERE user_id = ? ORDER BY registered_at DESC", userID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Registration, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		r, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRegistration(scan func(dest ...any) error) (domain.Registration, error) {
	var r domain.Registration
	var registeredAt, updatedAt string
	if err := scan(&r.ID, &r.CourseID, &r.UserID, &r.Status, &registeredAt, &updatedAt); err != nil {
		return domain.Registration{}, err
	}
	r.RegisteredAt, _ = storage.ParseTime(registeredAt)
	r.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return r, nil
}
