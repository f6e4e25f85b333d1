package membership

import (
	"errors"
	"strings"
	"time"
)

// Status constants. Only active memberships grant booking capability.
const (
	StatusActive            = "active"
	StatusExpired           = "expired"
	StatusCancelled         = "cancelled"
	StatusPaused            = "paused"
	StatusPendingActivation = "pending_activation"
	StatusPaymentFailed     = "payment_failed"
	StatusSuperseded        = "superseded"
	StatusUpgraded          = "upgraded"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{
	StatusActive, StatusExpired, StatusCancelled, StatusPaused,
	StatusPendingActivation, StatusPaymentFailed, StatusSuperseded, StatusUpgraded,
}

// Domain errors
var (
	ErrEmptyUserID     = errors.New("user ID cannot be empty")
	ErrEmptyPlanID     = errors.New("membership plan ID cannot be empty")
	ErrInvalidStatus   = errors.New("invalid membership status")
	ErrEmptyStartDate  = errors.New("start date is required")
	ErrEndBeforeStart  = errors.New("end date cannot be before start date")
	ErrNegativeCredits = errors.New("remaining credits cannot be negative")
)

// Data is the free-form bag stored alongside a membership.
// RemainingCredits is only meaningful for plans with a credits rule.
type Data struct {
	RemainingCredits int        `json:"remainingCredits"`
	LastRefillAt     *time.Time `json:"lastRefillAt,omitempty"`
}

// Membership links a user to a plan.
type Membership struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PlanID      string    `json:"planId"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"` // zero means open-ended
	AutoRenewal bool      `json:"autoRenewal"`
	Data        Data      `json:"data"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks if the Membership has valid data.
// PRE: Membership struct is populated
// POST: Returns nil if valid, error otherwise
func (m *Membership) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(m.PlanID) == "" {
		return ErrEmptyPlanID
	}
	if !isValidStatus(m.Status) {
		return ErrInvalidStatus
	}
	if m.StartDate.IsZero() {
		return ErrEmptyStartDate
	}
	if !m.EndDate.IsZero() && m.EndDate.Before(m.StartDate) {
		return ErrEndBeforeStart
	}
	if m.Data.RemainingCredits < 0 {
		return ErrNegativeCredits
	}
	return nil
}

// IsActive reports whether the membership currently grants booking capability.
func (m *Membership) IsActive() bool {
	return m.Status == StatusActive
}

// StartDay returns the day of month that anchors monthly periods for this membership.
// INVARIANT: Membership fields are not mutated
func (m *Membership) StartDay() int {
	return m.StartDate.Day()
}

func isValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}
