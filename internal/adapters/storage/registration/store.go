package registration

import (
	"context"

	domain "gymdesk/internal/domain/registration"
)

// Store persists course registrations.
type Store interface {
	// GetByCourseAndUser returns the single row for a user on a course, in any status.
	GetByCourseAndUser(ctx context.Context, courseID, userID string) (domain.Registration, error)

	// Upsert writes the row for (CourseID, UserID), reusing an existing row's ID.
	// POST: returns the persisted registration
	Upsert(ctx context.Context, r domain.Registration) (domain.Registration, error)

	// CountByStatus counts rows on a course with the given status.
	CountByStatus(ctx context.Context, courseID, status string) (int, error)

	// CountUserRegisteredBetween counts a user's registered rows whose course
	// date falls in [fromDate, toDate), both YYYY-MM-DD.
	CountUserRegisteredBetween(ctx context.Context, userID, fromDate, toDate string) (int, error)

	// ListByCourse returns a course's rows with the given status, oldest first.
	ListByCourse(ctx context.Context, courseID, status string) ([]domain.Registration, error)

	// ListByUser returns a user's rows, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Registration, error)
}
