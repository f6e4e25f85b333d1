package booking

import "gymdesk/internal/domain/plan"

// Eligibility is the decision for one user and one course.
// CanWaitlist is reserved for rules that allow queueing when over quota;
// none of the current rules do. Capacity waitlisting is decided at commit time.
type Eligibility struct {
	CanRegister bool             `json:"canRegister"`
	CanWaitlist bool             `json:"canWaitlist"`
	Rule        plan.BookingRule `json:"rule"`
	Reason      Reason           `json:"reason,omitempty"`
}

// Allowed reports whether a registration attempt may proceed at all.
func (e Eligibility) Allowed() bool {
	return e.CanRegister || e.CanWaitlist
}

// Err returns the typed error for a refusal, or nil when allowed.
func (e Eligibility) Err() error {
	if e.Allowed() {
		return nil
	}
	if err := errorFor(e.Reason); err != nil {
		return err
	}
	return ErrNoMembership
}

// Decide applies the ordered eligibility rules to a resolved policy.
// found is false when the user has neither an active membership nor an elevated role.
// usedInPeriod is the number of registered bookings in the current limited-rule
// window; it is ignored by other rules.
func Decide(p Policy, found bool, usedInPeriod int) Eligibility {
	if !found {
		return Eligibility{Reason: ReasonNoMembership}
	}

	rule := p.Rule
	switch rule.Kind {
	case plan.RuleOpenGymOnly:
		return Eligibility{Rule: rule, Reason: ReasonOpenGymOnlyRestriction}
	case plan.RuleUnlimited:
		return Eligibility{CanRegister: true, Rule: rule}
	case plan.RuleLimited:
		if usedInPeriod < rule.Count {
			return Eligibility{CanRegister: true, Rule: rule}
		}
		return Eligibility{Rule: rule, Reason: ReasonLimitReached}
	case plan.RuleCredits:
		if p.Membership.Data.RemainingCredits > 0 {
			return Eligibility{CanRegister: true, Rule: rule}
		}
		return Eligibility{Rule: rule, Reason: ReasonNoCredits}
	default:
		return Eligibility{Rule: rule, Reason: ReasonNoMembership}
	}
}
