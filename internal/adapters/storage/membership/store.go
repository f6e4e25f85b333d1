package membership

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/membership"
)

// Store persists user memberships and their credit balances.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Membership, error)
	Save(ctx context.Context, m domain.Membership) error
	ListByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	ListByStatus(ctx context.Context, status string) ([]domain.Membership, error)

	// DecrementCredit takes one credit if the balance is positive.
	// POST: returns false, nil when the balance was already zero
	DecrementCredit(ctx context.Context, id string) (bool, error)

	// IncrementCredit returns one credit to the balance.
	IncrementCredit(ctx context.Context, id string) error

	// ResetCredits sets the balance and stamps the refill time.
	ResetCredits(ctx context.Context, id string, amount int, refilledAt time.Time) error
}
