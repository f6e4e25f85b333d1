package account

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/account"
)

// Store persists gym accounts.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, a domain.Account) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Role string
	// InactiveBefore keeps accounts last active before this instant.
	// Accounts that were never active always match.
	InactiveBefore time.Time
	Limit          int
	Offset         int
}
