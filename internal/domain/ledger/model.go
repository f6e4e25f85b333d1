package ledger

import (
	"errors"
	"time"
)

// Transaction types.
const (
	TypeDeduction = "deduction"
	TypeRefund    = "refund"
	TypeRefill    = "refill"
	TypeGrant     = "grant"
)

// Domain errors
var (
	ErrEmptyMembershipID = errors.New("membership ID cannot be empty")
	ErrInvalidType       = errors.New("transaction type must be one of: deduction, refund, refill, grant")
	ErrZeroDelta         = errors.New("delta cannot be zero")
	ErrDeltaSign         = errors.New("delta sign does not match transaction type")
)

// Transaction records one change to a membership's credit balance.
type Transaction struct {
	ID             string    `json:"id"`
	MembershipID   string    `json:"membershipId"`
	UserID         string    `json:"userId"`
	Delta          int       `json:"delta"`
	Type           string    `json:"type"`
	RegistrationID string    `json:"registrationId,omitempty"` // optional
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate checks if the Transaction has valid data.
// PRE: Transaction struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Transaction) Validate() error {
	if t.MembershipID == "" {
		return ErrEmptyMembershipID
	}
	if t.Delta == 0 {
		return ErrZeroDelta
	}
	switch t.Type {
	case TypeDeduction:
		if t.Delta > 0 {
			return ErrDeltaSign
		}
	case TypeRefund:
		if t.Delta < 0 {
			return ErrDeltaSign
		}
	case TypeRefill, TypeGrant:
	default:
		return ErrInvalidType
	}
	return nil
}

// Balance sums the deltas of a transaction history.
func Balance(txs []Transaction) int {
	total := 0
	for _, t := range txs {
		total += t.Delta
	}
	return total
}
