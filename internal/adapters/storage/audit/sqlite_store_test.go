package audit

import (
	"context"
	"testing"
	"time"

	"gymdesk/internal/adapters/storage/storagetest"
	domain "gymdesk/internal/domain/audit"
)

// TestSQLiteStore_SaveAndList verifies filtering and newest-first ordering.
func TestSQLiteStore_SaveAndList(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	events := []domain.Event{
		domain.NewEvent("a1", t0, "admin1", "admin", domain.CategoryCatalog, domain.ActionCreate).WithResource("course", "c1"),
		domain.NewEvent("a2", t0.Add(time.Hour), "t1", "trainer", domain.CategoryBooking, domain.ActionBookOnBehalf).
			WithResource("course", "c1").WithSubject("u1").WithIP("10.0.0.5"),
		domain.NewEvent("a3", t0.Add(2*time.Hour), "admin1", "admin", domain.CategoryMembership, domain.ActionUpdate).WithResource("membership", "m1"),
	}
	for _, e := range events {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save %s: %v", e.ID, err)
		}
	}

	all, err := store.List(ctx, Filter{}, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
		t.Fatalf("List order = %+v", all)
	}

	byCourse, _ := store.List(ctx, Filter{ResourceID: "c1"}, 10)
	if len(byCourse) != 2 {
		t.Errorf("resource filter returned %d events, want 2", len(byCourse))
	}

	booking, _ := store.List(ctx, Filter{Category: domain.CategoryBooking}, 10)
	if len(booking) != 1 || booking[0].SubjectID != "u1" || booking[0].IPAddress != "10.0.0.5" || !booking[0].OccurredAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("booking events = %+v", booking)
	}

	window, _ := store.List(ctx, Filter{ActorID: "admin1", From: t0, To: t0.Add(2 * time.Hour)}, 10)
	if len(window) != 1 || window[0].ID != "a1" {
		t.Errorf("window = %+v", window)
	}

	limited, _ := store.List(ctx, Filter{}, 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d events", len(limited))
	}
}
