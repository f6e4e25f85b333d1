package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/plan"

	"github.com/google/uuid"
)

// MembershipStoreForAdmin defines the membership store interface needed by admin orchestrators.
type MembershipStoreForAdmin interface {
	GetByID(ctx context.Context, id string) (membership.Membership, error)
	Save(ctx context.Context, m membership.Membership) error
}

// AccountLookup loads an account by ID.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// AssignMembershipInput carries input for giving a user a plan.
type AssignMembershipInput struct {
	UserID      string
	PlanID      string
	StartDate   time.Time
	EndDate     time.Time // zero for open-ended
	AutoRenewal bool
}

// AssignMembershipDeps holds dependencies for AssignMembership.
type AssignMembershipDeps struct {
	AccountStore    AccountLookup
	PlanStore       PlanStoreForAdmin
	MembershipStore MembershipStoreForAdmin
	LedgerStore     BookingLedgerStore
	UnitOfWork      storage.UnitOfWork
	Now             func() time.Time
}

var (
	ErrUnknownUser  = errors.New("user does not exist")
	ErrUnknownPlan  = errors.New("plan does not exist")
	ErrPlanInactive = errors.New("plan is not offered any more")
)

// ExecuteAssignMembership creates an active membership for a user.
// Credits plans start with their initial amount, recorded as a grant in the ledger.
// PRE: user and plan exist; plan is active
// POST: membership persisted with Status=active
func ExecuteAssignMembership(ctx context.Context, input AssignMembershipInput, deps AssignMembershipDeps) (membership.Membership, error) {
	now := clock(deps.Now)

	if _, err := deps.AccountStore.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Membership{}, ErrUnknownUser
		}
		return membership.Membership{}, fmt.Errorf("load account: %w", err)
	}
	p, err := deps.PlanStore.GetByID(ctx, input.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Membership{}, ErrUnknownPlan
		}
		return membership.Membership{}, fmt.Errorf("load plan: %w", err)
	}
	if !p.IsActive {
		return membership.Membership{}, ErrPlanInactive
	}

	start := input.StartDate
	if start.IsZero() {
		start = now
	}
	m := membership.Membership{
		ID:          uuid.New().String(),
		UserID:      input.UserID,
		PlanID:      p.ID,
		Status:      membership.StatusActive,
		StartDate:   start,
		EndDate:     input.EndDate,
		AutoRenewal: input.AutoRenewal,
		CreatedAt:   now,
	}
	if p.Rule.Kind == plan.RuleCredits {
		m.Data.RemainingCredits = p.Rule.InitialAmount
		m.Data.LastRefillAt = &now
	}
	if err := m.Validate(); err != nil {
		return membership.Membership{}, invalid(err)
	}

	uow := deps.UnitOfWork
	if uow == nil {
		uow = storage.PassThrough{}
	}
	err = uow.Atomic(ctx, func(ctx context.Context) error {
		if err := deps.MembershipStore.Save(ctx, m); err != nil {
			return err
		}
		if m.Data.RemainingCredits == 0 || deps.LedgerStore == nil {
			return nil
		}
		return deps.LedgerStore.Append(ctx, ledger.Transaction{
			ID:           uuid.New().String(),
			MembershipID: m.ID,
			UserID:       m.UserID,
			Delta:        m.Data.RemainingCredits,
			Type:         ledger.TypeGrant,
			Reason:       "membership assigned",
			CreatedAt:    now,
		})
	})
	if err != nil {
		return membership.Membership{}, err
	}

	slog.Info("admin_event", "event", "membership_assigned", "membership_id", m.ID, "user_id", m.UserID, "plan_id", p.ID)
	return m, nil
}

// ExecuteSetMembershipStatus moves a membership to another lifecycle status,
// e.g. pausing or cancelling it. Only active memberships grant booking.
// PRE: status is one of membership.ValidStatuses
// POST: membership persisted with the new status
func ExecuteSetMembershipStatus(ctx context.Context, id, status string, store MembershipStoreForAdmin) (membership.Membership, error) {
	m, err := store.GetByID(ctx, id)
	if err != nil {
		return membership.Membership{}, fmt.Errorf("load membership: %w", err)
	}
	prior := m.Status
	m.Status = status
	if err := m.Validate(); err != nil {
		return membership.Membership{}, invalid(err)
	}
	if err := store.Save(ctx, m); err != nil {
		return membership.Membership{}, err
	}
	slog.Info("admin_event", "event", "membership_status_changed", "membership_id", id, "from", prior, "to", status)
	return m, nil
}
