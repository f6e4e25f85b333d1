package projections

import (
	"context"
	"database/sql"
	"time"

	accountStore "gymdesk/internal/adapters/storage/account"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/plan"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type mockAccountStore struct {
	accounts []account.Account
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return account.Account{}, sql.ErrNoRows
}

// List honours the role and inactivity filters like the SQLite store.
func (m *mockAccountStore) List(_ context.Context, f accountStore.ListFilter) ([]account.Account, error) {
	var out []account.Account
	for _, a := range m.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if !f.InactiveBefore.IsZero() && !a.LastActiveAt.IsZero() && !a.LastActiveAt.Before(f.InactiveBefore) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type mockMembershipStore struct {
	byUser map[string][]membership.Membership
}

func (m *mockMembershipStore) ListByUser(_ context.Context, userID string) ([]membership.Membership, error) {
	return m.byUser[userID], nil
}

type mockPlanStore struct {
	plans map[string]plan.Plan
	gets  int
}

func (m *mockPlanStore) GetByID(_ context.Context, id string) (plan.Plan, error) {
	m.gets++
	p, ok := m.plans[id]
	if !ok {
		return plan.Plan{}, sql.ErrNoRows
	}
	return p, nil
}

type mockLedgerStore struct {
	rows []ledger.Transaction
}

func (m *mockLedgerStore) ListByUser(_ context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range m.rows {
		if t.UserID == userID && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func member(id, name string, lastActive time.Time) account.Account {
	return account.Account{ID: id, Email: id + "@gym.test", DisplayName: name, Role: account.RoleMember, LastActiveAt: lastActive}
}

func activeOn(id, userID, planID string, credits int) membership.Membership {
	return membership.Membership{ID: id, UserID: userID, PlanID: planID, Status: membership.StatusActive, StartDate: fixedNow.AddDate(0, -1, 0), Data: membership.Data{RemainingCredits: credits}}
}
