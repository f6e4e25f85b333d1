package plan

import (
	"errors"
	"strings"
	"time"
)

// Booking rule kinds.
const (
	RuleUnlimited   = "unlimited"
	RuleLimited     = "limited"
	RuleCredits     = "credits"
	RuleOpenGymOnly = "open_gym_only"
)

// Limit periods for the Limited rule.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// Refill schedules for the Credits rule.
const (
	RefillMonthly = "monthly"
	RefillNever   = "never"
)

// MaxNameLength bounds plan names shown in the admin UI.
const MaxNameLength = 100

// Domain errors
var (
	ErrEmptyName         = errors.New("plan name cannot be empty")
	ErrNameTooLong       = errors.New("plan name cannot exceed 100 characters")
	ErrInvalidRuleKind   = errors.New("booking rule must be one of: unlimited, limited, credits, open_gym_only")
	ErrInvalidLimitCount = errors.New("limited rule requires a count greater than zero")
	ErrInvalidPeriod     = errors.New("limited rule period must be week or month")
	ErrInvalidCredits    = errors.New("credits rule requires a non-negative initial amount")
	ErrInvalidRefill     = errors.New("credits refill must be monthly or never")
	ErrUnexpectedParams  = errors.New("booking rule carries parameters that do not belong to its kind")
)

// BookingRule is a tagged variant: Kind selects which of the remaining fields are meaningful.
//   - unlimited, open_gym_only: no parameters
//   - limited: Count, Period
//   - credits: InitialAmount, Refill
type BookingRule struct {
	Kind          string `json:"kind"`
	Count         int    `json:"count,omitempty"`
	Period        string `json:"period,omitempty"`
	InitialAmount int    `json:"initialAmount,omitempty"`
	Refill        string `json:"refill,omitempty"`
}

// Unlimited returns the rule granted to elevated roles and unlimited plans.
func Unlimited() BookingRule { return BookingRule{Kind: RuleUnlimited} }

// Limited returns a periodic quota rule.
func Limited(count int, period string) BookingRule {
	return BookingRule{Kind: RuleLimited, Count: count, Period: period}
}

// Credits returns a consumable balance rule.
func Credits(initialAmount int, refill string) BookingRule {
	return BookingRule{Kind: RuleCredits, InitialAmount: initialAmount, Refill: refill}
}

// OpenGymOnly returns the rule for plans without course booking.
func OpenGymOnly() BookingRule { return BookingRule{Kind: RuleOpenGymOnly} }

// Validate checks that the parameters match the rule kind.
// PRE: none
// POST: Returns nil if the variant is well-formed
func (r BookingRule) Validate() error {
	switch r.Kind {
	case RuleUnlimited, RuleOpenGymOnly:
		if r.Count != 0 || r.Period != "" || r.InitialAmount != 0 || r.Refill != "" {
			return ErrUnexpectedParams
		}
	case RuleLimited:
		if r.Count <= 0 {
			return ErrInvalidLimitCount
		}
		if r.Period != PeriodWeek && r.Period != PeriodMonth {
			return ErrInvalidPeriod
		}
		if r.InitialAmount != 0 || r.Refill != "" {
			return ErrUnexpectedParams
		}
	case RuleCredits:
		if r.InitialAmount < 0 {
			return ErrInvalidCredits
		}
		if r.Refill != RefillMonthly && r.Refill != RefillNever {
			return ErrInvalidRefill
		}
		if r.Count != 0 || r.Period != "" {
			return ErrUnexpectedParams
		}
	default:
		return ErrInvalidRuleKind
	}
	return nil
}

// IsCredits reports whether the rule consumes a stored balance.
func (r BookingRule) IsCredits() bool { return r.Kind == RuleCredits }

// Plan is a membership plan configured by admins. The booking engine only reads it.
type Plan struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Rule            BookingRule `json:"rule"`
	IncludesOpenGym bool        `json:"includesOpenGym"`
	IsActive        bool        `json:"isActive"`
	PriorityRank    int         `json:"priorityRank"` // higher wins when a user holds several active memberships
	CreatedAt       time.Time   `json:"createdAt"`
}

// Validate checks if the Plan has valid data.
// PRE: Plan struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Plan) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return p.Rule.Validate()
}
