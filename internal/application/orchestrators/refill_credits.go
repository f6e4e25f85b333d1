package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage"
	planStore "gymdesk/internal/adapters/storage/plan"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/plan"

	"github.com/google/uuid"
)

// RefillMembershipStore defines the membership store interface needed by the refill job.
type RefillMembershipStore interface {
	GetByID(ctx context.Context, id string) (membership.Membership, error)
	ListByStatus(ctx context.Context, status string) ([]membership.Membership, error)
	ResetCredits(ctx context.Context, id string, amount int, refilledAt time.Time) error
}

// RefillCreditsDeps holds dependencies for RefillCredits.
type RefillCreditsDeps struct {
	MembershipStore RefillMembershipStore
	PlanStore       BookingPlanStore
	LedgerStore     BookingLedgerStore
	UnitOfWork      storage.UnitOfWork
	Location        *time.Location
	Now             func() time.Time
	GenerateID      func() string
}

// RefillCreditsResult reports how many memberships were topped up.
type RefillCreditsResult struct {
	Checked  int
	Refilled int
}

// ExecuteRefillCredits resets monthly credit balances whose refill window has rolled over.
// A membership refills once per month window anchored on its start day; the
// balance is set to the plan's initial amount, not added to.
// PRE: none
// POST: every active monthly-credits membership has LastRefillAt inside its current window
// INVARIANT: a second run within the same window changes nothing
func ExecuteRefillCredits(ctx context.Context, deps RefillCreditsDeps) (RefillCreditsResult, error) {
	var result RefillCreditsResult
	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}
	if deps.Location != nil {
		now = now.In(deps.Location)
	}
	uow := deps.UnitOfWork
	if uow == nil {
		uow = storage.PassThrough{}
	}

	plans, err := deps.PlanStore.List(ctx, planStore.ListFilter{})
	if err != nil {
		return result, fmt.Errorf("list plans: %w", err)
	}
	monthly := make(map[string]plan.Plan)
	for _, p := range plans {
		if p.Rule.IsCredits() && p.Rule.Refill == plan.RefillMonthly {
			monthly[p.ID] = p
		}
	}
	if len(monthly) == 0 {
		return result, nil
	}

	members, err := deps.MembershipStore.ListByStatus(ctx, membership.StatusActive)
	if err != nil {
		return result, fmt.Errorf("list memberships: %w", err)
	}

	for _, m := range members {
		p, ok := monthly[m.PlanID]
		if !ok || now.Before(m.StartDate) {
			continue
		}
		result.Checked++
		window := booking.MonthWindow(now, m.StartDay())
		if m.Data.LastRefillAt != nil && !m.Data.LastRefillAt.Before(window.Start) {
			continue
		}

		refilled := false
		err := uow.Atomic(ctx, func(ctx context.Context) error {
			// The listed row may predate a booking; the ledger delta needs the committed balance.
			current, err := deps.MembershipStore.GetByID(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("reload membership: %w", err)
			}
			if current.Data.LastRefillAt != nil && !current.Data.LastRefillAt.Before(window.Start) {
				return nil
			}
			if err := deps.MembershipStore.ResetCredits(ctx, m.ID, p.Rule.InitialAmount, now); err != nil {
				return err
			}
			refilled = true
			delta := p.Rule.InitialAmount - current.Data.RemainingCredits
			if delta == 0 || deps.LedgerStore == nil {
				return nil
			}
			id := uuid.New().String()
			if deps.GenerateID != nil {
				id = deps.GenerateID()
			}
			return deps.LedgerStore.Append(ctx, ledger.Transaction{
				ID:           id,
				MembershipID: m.ID,
				UserID:       m.UserID,
				Delta:        delta,
				Type:         ledger.TypeRefill,
				Reason:       "monthly refill",
				CreatedAt:    now,
			})
		})
		if err != nil {
			slog.Error("credit_refill_failed", "membership_id", m.ID, "error", err)
			continue
		}
		if !refilled {
			continue
		}
		result.Refilled++
		slog.Info("credit_event", "event", "credits_refilled", "membership_id", m.ID, "user_id", m.UserID, "amount", p.Rule.InitialAmount)
	}
	return result, nil
}

// StartRefillWorker runs ExecuteRefillCredits on a ticker until stopCh is closed.
// PRE: interval > 0
// POST: Worker runs until stopCh is closed
func StartRefillWorker(deps RefillCreditsDeps, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := ExecuteRefillCredits(ctx, deps); err != nil {
					slog.Error("credit_refill_run_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("credit_refill_worker_stopped")
				return
			}
		}
	}()
}
