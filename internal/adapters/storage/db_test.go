package storage

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
// One connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expectedTables is the sorted list of tables after all migrations.
var expectedTables = []string{
	"account",
	"audit_event",
	"course",
	"course_registration",
	"credit_transaction",
	"goose_db_version",
	"membership_plan",
	"outbox",
	"user_membership",
}

// TestMigrateDB_Fresh verifies all migrations apply cleanly to an empty database.
func TestMigrateDB_Fresh(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed on fresh db: %v", err)
	}

	version, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != LatestSchemaVersion() {
		t.Errorf("version = %d, want %d", version, LatestSchemaVersion())
	}

	tables := getTableNames(t, db)
	if len(tables) != len(expectedTables) {
		t.Fatalf("got %d tables, want %d\ngot:  %v\nwant: %v", len(tables), len(expectedTables), tables, expectedTables)
	}
	for i, want := range expectedTables {
		if tables[i] != want {
			t.Errorf("table[%d] = %q, want %q", i, tables[i], want)
		}
	}
}

// TestMigrateDB_Idempotent verifies that running MigrateDB twice keeps data and version.
func TestMigrateDB_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("first MigrateDB failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO course (id, title, course_date, start_time, end_time, max_participants)
		VALUES ('c1', 'Spin', '2026-03-02', '18:00', '19:00', 12)`); err != nil {
		t.Fatalf("insert course: %v", err)
	}
	version1, _ := SchemaVersion(db)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}
	version2, _ := SchemaVersion(db)
	if version1 != version2 {
		t.Errorf("version changed after idempotent run: %d -> %d", version1, version2)
	}

	var title string
	if err := db.QueryRow("SELECT title FROM course WHERE id = 'c1'").Scan(&title); err != nil {
		t.Fatalf("course lost after migration: %v", err)
	}
}

// TestMigrateDB_UniqueRegistration verifies one registration row per course and user.
func TestMigrateDB_UniqueRegistration(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}
	insert := `INSERT INTO course_registration (id, course_id, user_id, status, registered_at, updated_at)
		VALUES (?, 'c1', 'u1', 'registered', '2026-03-01T10:00:00Z', '2026-03-01T10:00:00Z')`
	if _, err := db.Exec(insert, "r1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "r2"); err == nil {
		t.Error("expected unique constraint violation on second registration")
	}
}

// TestMigrateDB_VersionProgression verifies SchemaVersion reports 0 before migration.
func TestMigrateDB_VersionProgression(t *testing.T) {
	db := openTestDB(t)

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("initial version = %d, want 0", v)
	}
	if LatestSchemaVersion() < 2 {
		t.Fatalf("LatestSchemaVersion = %d, want >= 2", LatestSchemaVersion())
	}
}

// TestTxRunner_CommitAndRollback verifies Atomic commits on success and rolls back on error.
func TestTxRunner_CommitAndRollback(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE seat (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	runner := NewTxRunner(db)
	ctx := context.Background()

	err := runner.Atomic(ctx, func(ctx context.Context) error {
		if !InTx(ctx) {
			t.Error("expected ctx to carry a transaction")
		}
		_, err := Conn(ctx, db).ExecContext(ctx, "INSERT INTO seat (id) VALUES ('a')")
		return err
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	boom := errors.New("boom")
	err = runner.Atomic(ctx, func(ctx context.Context) error {
		if _, err := Conn(ctx, db).ExecContext(ctx, "INSERT INTO seat (id) VALUES ('b')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want boom", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM seat").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("seats = %d, want 1 (rolled back insert must not persist)", n)
	}
}

// TestTxRunner_Nested verifies a nested Atomic joins the outer transaction.
func TestTxRunner_Nested(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE seat (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	runner := NewTxRunner(db)
	boom := errors.New("boom")

	err := runner.Atomic(context.Background(), func(ctx context.Context) error {
		if err := runner.Atomic(ctx, func(ctx context.Context) error {
			_, err := Conn(ctx, db).ExecContext(ctx, "INSERT INTO seat (id) VALUES ('a')")
			return err
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want boom", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM seat").Scan(&n)
	if n != 0 {
		t.Errorf("seats = %d, want 0 (inner write belongs to the rolled back outer tx)", n)
	}
}

// TestDSN verifies the connection string requests immediate transactions.
func TestDSN(t *testing.T) {
	got := DSN("gym.db")
	want := "file:gym.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
