package projections

import (
	"context"

	accountStore "gymdesk/internal/adapters/storage/account"
	courseStore "gymdesk/internal/adapters/storage/course"
	domainAccount "gymdesk/internal/domain/account"
	domainCourse "gymdesk/internal/domain/course"
	domainLedger "gymdesk/internal/domain/ledger"
	domainMembership "gymdesk/internal/domain/membership"
	domainPlan "gymdesk/internal/domain/plan"
	domainRegistration "gymdesk/internal/domain/registration"
)

// AccountStore interface for account queries.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (domainAccount.Account, error)
	List(ctx context.Context, filter accountStore.ListFilter) ([]domainAccount.Account, error)
}

// CourseStore interface for course queries.
type CourseStore interface {
	GetByID(ctx context.Context, id string) (domainCourse.Course, error)
	List(ctx context.Context, filter courseStore.ListFilter) ([]domainCourse.Course, error)
}

// RegistrationStore interface for registration queries.
type RegistrationStore interface {
	GetByCourseAndUser(ctx context.Context, courseID, userID string) (domainRegistration.Registration, error)
	CountByStatus(ctx context.Context, courseID, status string) (int, error)
	ListByCourse(ctx context.Context, courseID, status string) ([]domainRegistration.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]domainRegistration.Registration, error)
}

// MembershipStore interface for membership queries.
type MembershipStore interface {
	ListByUser(ctx context.Context, userID string) ([]domainMembership.Membership, error)
}

// LedgerStore interface for credit ledger queries.
type LedgerStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domainLedger.Transaction, error)
}

// PlanStore interface for plan lookups.
type PlanStore interface {
	GetByID(ctx context.Context, id string) (domainPlan.Plan, error)
}
