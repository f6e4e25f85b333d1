package registration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"gymdesk/internal/adapters/storage/storagetest"
	domain "gymdesk/internal/domain/registration"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *SQLiteStore {
	db := storagetest.Open(t)
	storagetest.Exec(t, db,
		`INSERT INTO course (id, title, course_date, start_time, end_time, max_participants) VALUES ('c-feb10', 'Spin', '2026-02-10', '18:00', '19:00', 10)`,
		`INSERT INTO course (id, title, course_date, start_time, end_time, max_participants) VALUES ('c-feb11', 'Spin', '2026-02-11', '18:00', '19:00', 10)`,
		`INSERT INTO course (id, title, course_date, start_time, end_time, max_participants) VALUES ('c-mar10', 'Spin', '2026-03-10', '18:00', '19:00', 10)`,
	)
	return NewSQLiteStore(db)
}

func reg(id, courseID, userID, status string, at time.Time) domain.Registration {
	return domain.Registration{ID: id, CourseID: courseID, UserID: userID, Status: status, RegisteredAt: at, UpdatedAt: at}
}

// TestSQLiteStore_UpsertReusesRow verifies a cancelled row is reused on re-registration.
func TestSQLiteStore_UpsertReusesRow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, reg("r1", "c-feb11", "u1", domain.StatusRegistered, t0))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	first.Cancel(t0.Add(time.Hour))
	if _, err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert cancel: %v", err)
	}

	again, err := store.Upsert(ctx, reg("r2", "c-feb11", "u1", domain.StatusWaitlist, t0.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Upsert re-register: %v", err)
	}
	if again.ID != "r1" {
		t.Errorf("ID = %s, want reused r1", again.ID)
	}
	if again.Status != domain.StatusWaitlist || !again.RegisteredAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("unexpected row after re-register: %+v", again)
	}

	rows, _ := store.ListByUser(ctx, "u1")
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

// TestSQLiteStore_GetByCourseAndUser_NotFound wraps sql.ErrNoRows.
func TestSQLiteStore_GetByCourseAndUser_NotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.GetByCourseAndUser(context.Background(), "c-feb11", "nobody")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("got %v, want sql.ErrNoRows", err)
	}
}

// TestSQLiteStore_Counts verifies roster counts and the user window count.
func TestSQLiteStore_Counts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, r := range []domain.Registration{
		reg("r1", "c-feb10", "u1", domain.StatusRegistered, t0),
		reg("r2", "c-feb11", "u1", domain.StatusRegistered, t0),
		reg("r3", "c-mar10", "u1", domain.StatusCancelled, t0),
		reg("r4", "c-feb11", "u2", domain.StatusWaitlist, t0),
		reg("r5", "c-feb11", "u3", domain.StatusRegistered, t0),
	} {
		if _, err := store.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert %s: %v", r.ID, err)
		}
	}

	n, err := store.CountByStatus(ctx, "c-feb11", domain.StatusRegistered)
	if err != nil || n != 2 {
		t.Errorf("CountByStatus = %d, %v; want 2", n, err)
	}

	// Window anchored on the 11th: the 10th belongs to the previous period.
	n, err = store.CountUserRegisteredBetween(ctx, "u1", "2026-02-11", "2026-03-11")
	if err != nil || n != 1 {
		t.Errorf("CountUserRegisteredBetween = %d, %v; want 1", n, err)
	}
	n, _ = store.CountUserRegisteredBetween(ctx, "u1", "2026-01-11", "2026-02-11")
	if n != 1 {
		t.Errorf("previous window count = %d, want 1", n)
	}
}

// TestSQLiteStore_ListByCourse orders the waitlist oldest first.
func TestSQLiteStore_ListByCourse(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	store.Upsert(ctx, reg("late", "c-feb11", "u2", domain.StatusWaitlist, t0.Add(time.Minute)))
	store.Upsert(ctx, reg("early", "c-feb11", "u3", domain.StatusWaitlist, t0))
	store.Upsert(ctx, reg("in", "c-feb11", "u1", domain.StatusRegistered, t0))

	wl, err := store.ListByCourse(ctx, "c-feb11", domain.StatusWaitlist)
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if len(wl) != 2 || wl[0].ID != "early" || wl[1].ID != "late" {
		t.Errorf("waitlist order = %+v", wl)
	}
}
