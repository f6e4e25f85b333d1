package orchestrators

import (
	"context"
	"database/sql"
	"errors"

	planStore "gymdesk/internal/adapters/storage/plan"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/plan"
)

// CheckEligibilityInput carries input for the eligibility check.
type CheckEligibilityInput struct {
	UserID   string
	CourseID string
}

// ExecuteCheckEligibility decides whether a user may book a course.
// It is the only place eligibility is computed; registration calls it again
// inside its transaction.
// PRE: UserID and CourseID are non-empty
// POST: Returns the decision; refusals are carried in Eligibility.Reason, not as errors
func ExecuteCheckEligibility(ctx context.Context, input CheckEligibilityInput, deps BookingDeps) (booking.Eligibility, error) {
	c, err := deps.loadCourse(ctx, input.CourseID)
	if err != nil {
		return booking.Eligibility{}, err
	}
	elig, _, err := evaluateEligibility(ctx, input.UserID, c, deps)
	return elig, err
}

// evaluateEligibility resolves the user's policy and applies the ordered rules
// for one course. The policy is returned so callers can charge the right membership.
func evaluateEligibility(ctx context.Context, userID string, c course.Course, deps BookingDeps) (booking.Eligibility, booking.Policy, error) {
	policy, found, err := resolvePolicy(ctx, userID, deps)
	if err != nil {
		return booking.Eligibility{}, booking.Policy{}, err
	}

	used := 0
	if found && policy.Rule.Kind == plan.RuleLimited {
		start, err := c.Start(deps.Location)
		if err != nil {
			return booking.Eligibility{}, booking.Policy{}, booking.Transient("parse course start", err)
		}
		w, err := policy.Window(start)
		if err != nil {
			return booking.Eligibility{}, booking.Policy{}, booking.Transient("period window", err)
		}
		used, err = deps.RegistrationStore.CountUserRegisteredBetween(ctx, userID,
			w.Start.Format(course.DateLayout), w.End.Format(course.DateLayout))
		if err != nil {
			return booking.Eligibility{}, booking.Policy{}, booking.Transient("count registrations", err)
		}
	}

	return booking.Decide(policy, found, used), policy, nil
}

// resolvePolicy returns the user's authoritative policy. Staff roles always
// resolve to the elevated unlimited policy.
func resolvePolicy(ctx context.Context, userID string, deps BookingDeps) (booking.Policy, bool, error) {
	elevated, err := isElevated(ctx, userID, deps)
	if err != nil {
		return booking.Policy{}, false, err
	}
	if elevated {
		return booking.ElevatedPolicy(), true, nil
	}
	memberships, err := deps.MembershipStore.ListByUser(ctx, userID)
	if err != nil {
		return booking.Policy{}, false, booking.Transient("list memberships", err)
	}
	plans, err := loadPlans(ctx, deps.PlanStore)
	if err != nil {
		return booking.Policy{}, false, err
	}
	policy, found := booking.Resolve(memberships, plans)
	return policy, found, nil
}

// isElevated reports whether the user holds a staff role. Unknown users are members.
func isElevated(ctx context.Context, userID string, deps BookingDeps) (bool, error) {
	if deps.AccountStore == nil {
		return false, nil
	}
	acct, err := deps.AccountStore.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, booking.Transient("load account", err)
	}
	return acct.IsElevated(), nil
}

// loadPlans returns every plan keyed by ID. Inactive plans still back the
// memberships that were sold under them.
func loadPlans(ctx context.Context, store BookingPlanStore) (map[string]plan.Plan, error) {
	list, err := store.List(ctx, planStore.ListFilter{})
	if err != nil {
		return nil, booking.Transient("list plans", err)
	}
	plans := make(map[string]plan.Plan, len(list))
	for _, p := range list {
		plans[p.ID] = p
	}
	return plans, nil
}
