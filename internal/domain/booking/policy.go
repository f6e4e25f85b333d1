package booking

import (
	"sort"
	"time"

	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/plan"
)

// Policy is the authoritative membership of a user and the rule it grants.
// Elevated policies come from a staff role and carry no membership.
type Policy struct {
	Membership membership.Membership
	Plan       plan.Plan
	Rule       plan.BookingRule
	Elevated   bool
}

// ElevatedPolicy is the unlimited policy granted to admins and trainers.
func ElevatedPolicy() Policy {
	return Policy{Rule: plan.Unlimited(), Elevated: true}
}

// HasMembership reports whether the policy is backed by a membership row.
func (p Policy) HasMembership() bool {
	return !p.Elevated && p.Membership.ID != ""
}

// Window returns the limited-rule period containing at.
// PRE: Rule.Kind is limited
func (p Policy) Window(at time.Time) (Window, error) {
	return PeriodWindow(p.Rule.Period, at, p.Membership.StartDay())
}

// Resolve picks the single authoritative membership among a user's memberships.
// Only active memberships with a known plan are considered. The highest plan
// PriorityRank wins; ties go to the most recently created membership, then to
// the larger ID so the choice is deterministic.
// POST: Returns false when nothing qualifies; that is "no booking capability", not an error
func Resolve(memberships []membership.Membership, plans map[string]plan.Plan) (Policy, bool) {
	type candidate struct {
		m membership.Membership
		p plan.Plan
	}
	var cands []candidate
	for _, m := range memberships {
		if !m.IsActive() {
			continue
		}
		p, ok := plans[m.PlanID]
		if !ok {
			continue
		}
		cands = append(cands, candidate{m: m, p: p})
	}
	if len(cands) == 0 {
		return Policy{}, false
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.p.PriorityRank != b.p.PriorityRank {
			return a.p.PriorityRank > b.p.PriorityRank
		}
		if !a.m.CreatedAt.Equal(b.m.CreatedAt) {
			return a.m.CreatedAt.After(b.m.CreatedAt)
		}
		return a.m.ID > b.m.ID
	})

	best := cands[0]
	return Policy{Membership: best.m, Plan: best.p, Rule: best.p.Rule}, true
}
