package ledger

import (
	"context"
	"testing"
	"time"

	"gymdesk/internal/adapters/storage/storagetest"
	domain "gymdesk/internal/domain/ledger"
)

// TestSQLiteStore_AppendAndBalance verifies ordering and balance of the ledger.
func TestSQLiteStore_AppendAndBalance(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []domain.Transaction{
		{ID: "t1", MembershipID: "m1", UserID: "u1", Delta: 10, Type: domain.TypeGrant, CreatedAt: t0},
		{ID: "t2", MembershipID: "m1", UserID: "u1", Delta: -1, Type: domain.TypeDeduction, RegistrationID: "r1", CreatedAt: t0.Add(time.Hour)},
		{ID: "t3", MembershipID: "m1", UserID: "u1", Delta: 1, Type: domain.TypeRefund, RegistrationID: "r1", Reason: "cancelled", CreatedAt: t0.Add(2 * time.Hour)},
	}
	for _, r := range rows {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append %s: %v", r.ID, err)
		}
	}

	byMembership, err := store.ListByMembership(ctx, "m1")
	if err != nil {
		t.Fatalf("ListByMembership: %v", err)
	}
	if domain.Balance(byMembership) != 10 {
		t.Errorf("Balance = %d, want 10", domain.Balance(byMembership))
	}

	recent, _ := store.ListByUser(ctx, "u1", 2)
	if len(recent) != 2 || recent[0].ID != "t3" || recent[0].Reason != "cancelled" {
		t.Errorf("ListByUser = %+v", recent)
	}
}
