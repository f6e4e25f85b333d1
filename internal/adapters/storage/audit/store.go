package audit

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/audit"
)

// Store persists the audit trail.
type Store interface {
	// Save persists an audit event.
	// PRE: event has been validated
	// POST: Event is persisted
	Save(ctx context.Context, event domain.Event) error

	// List returns audit events matching filter.
	// PRE: limit > 0
	// POST: Returns events ordered by time, newest first
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Category   domain.Category
	Action     domain.Action
	ActorID    string
	ResourceID string
	From       time.Time // inclusive
	To         time.Time // exclusive
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
