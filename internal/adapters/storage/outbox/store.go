package outbox

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/outbox"
)

// Store persists outbox entries. Save joins an enclosing transaction, so an
// entry queued by a booking commits or rolls back with it.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error

	// ListDue returns open entries whose next attempt is at or before now,
	// oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// ListPending returns open entries whether or not they are due, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListByStatus returns entries in one status, most recently attempted first.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error)

	// PurgeSettled deletes done and abandoned entries created before cutoff
	// and returns how many went. Failed entries are kept for a manual retry.
	PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error)
}
