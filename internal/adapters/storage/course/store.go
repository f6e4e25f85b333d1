package course

import (
	"context"

	domain "gymdesk/internal/domain/course"
)

// Store persists courses.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Course, error)
	Save(ctx context.Context, c domain.Course) error
	List(ctx context.Context, filter ListFilter) ([]domain.Course, error)
}

// ListFilter restricts List to a date range (inclusive, YYYY-MM-DD).
type ListFilter struct {
	FromDate         string
	ToDate           string
	IncludeCancelled bool
}
