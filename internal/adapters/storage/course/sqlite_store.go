package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/course"
)

const selectColumns = `SELECT id, title, course_date, start_time, end_time, max_participants,
	registration_deadline_minutes, cancellation_deadline_minutes, is_cancelled FROM course`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new course store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a course by its ID.
// PRE: id is non-empty
// POST: Returns the course or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Course, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	c, err := scanCourse(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Course{}, fmt.Errorf("course not found: %w", err)
	}
	return c, err
}

// Save persists a course.
// PRE: c has been validated
// POST: course is inserted or updated
func (s *SQLiteStore) Save(ctx context.Context, c domain.Course) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO course (id, title, course_date, start_time, end_time, max_participants,
		   registration_deadline_minutes, cancellation_deadline_minutes, is_cancelled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, course_date=excluded.course_date, start_time=excluded.start_time,
		   end_time=excluded.end_time, max_participants=excluded.max_participants,
		   registration_deadline_minutes=excluded.registration_deadline_minutes,
		   cancellation_deadline_minutes=excluded.cancellation_deadline_minutes,
		   is_cancelled=excluded.is_cancelled`,
		c.ID, c.Title, c.CourseDate, c.StartTime, c.EndTime, c.MaxParticipants,
		c.RegistrationDeadlineMinutes, c.CancellationDeadlineMinutes, c.IsCancelled)
	return err
}

// List returns courses in date and start time order.
// PRE: filter dates, when set, are YYYY-MM-DD
// POST: Returns matching courses; cancelled ones only if requested
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Course, error) {
	var where []string
	var args []any
	if filter.FromDate != "" {
		where = append(where, "course_date >= ?")
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		where = append(where, "course_date <= ?")
		args = append(args, filter.ToDate)
	}
	if !filter.IncludeCancelled {
		where = append(where, "is_cancelled = 0")
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY course_date ASC, start_time ASC"

	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		c, err := scanCourse(rows.Scan)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func scanCourse(scan func(dest ...any) error) (domain.Course, error) {
	var c domain.Course
	err := scan(&c.ID, &c.Title, &c.CourseDate, &c.StartTime, &c.EndTime, &c.MaxParticipants,
		&c.RegistrationDeadlineMinutes, &c.CancellationDeadlineMinutes, &c.IsCancelled)
	if err != nil {
		return domain.Course{}, err
	}
	return c, nil
}
