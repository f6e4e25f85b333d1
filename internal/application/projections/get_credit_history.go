package projections

import (
	"context"

	"gymdesk/internal/domain/ledger"
)

// GetCreditHistoryQuery carries input for the credit history view.
type GetCreditHistoryQuery struct {
	UserID string
	Limit  int
}

// GetCreditHistoryDeps holds dependencies for the credit history view.
type GetCreditHistoryDeps struct {
	MembershipStore MembershipStore
	LedgerStore     LedgerStore
}

// CreditHistory is a member's current balance and recent ledger rows.
type CreditHistory struct {
	Balance int                  `json:"balance"` // remaining credits across active memberships
	Entries []ledger.Transaction `json:"entries"` // newest first
}

// QueryGetCreditHistory returns the member's balance and ledger.
func QueryGetCreditHistory(ctx context.Context, query GetCreditHistoryQuery, deps GetCreditHistoryDeps) (CreditHistory, error) {
	if query.Limit <= 0 {
		query.Limit = 50
	}

	memberships, err := deps.MembershipStore.ListByUser(ctx, query.UserID)
	if err != nil {
		return CreditHistory{}, err
	}
	h := CreditHistory{Entries: []ledger.Transaction{}}
	for _, m := range memberships {
		if m.IsActive() {
			h.Balance += m.Data.RemainingCredits
		}
	}

	txs, err := deps.LedgerStore.ListByUser(ctx, query.UserID, query.Limit)
	if err != nil {
		return CreditHistory{}, err
	}
	if txs != nil {
		h.Entries = txs
	}
	return h, nil
}
