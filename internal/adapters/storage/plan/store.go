package plan

import (
	"context"

	domain "gymdesk/internal/domain/plan"
)

// Store persists membership plans.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Plan, error)
	Save(ctx context.Context, p domain.Plan) error
	List(ctx context.Context, filter ListFilter) ([]domain.Plan, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	ActiveOnly bool
}
