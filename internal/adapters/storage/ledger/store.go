package ledger

import (
	"context"

	domain "gymdesk/internal/domain/ledger"
)

// Store persists the credit ledger. Rows are append-only.
type Store interface {
	Append(ctx context.Context, t domain.Transaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	ListByMembership(ctx context.Context, membershipID string) ([]domain.Transaction, error)
}
