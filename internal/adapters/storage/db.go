package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// DSN builds a modernc sqlite connection string.
// Writers take the RESERVED lock at BEGIN so two bookings cannot both read
// a free seat and then both commit.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// gooseMu guards goose's package-level dialect and filesystem.
var gooseMu sync.Mutex

// MigrateDB applies all pending migrations.
// PRE: db is a valid database connection
// POST: schema is at LatestSchemaVersion; a file database at an older
// non-zero version is copied to <dbPath>.bak-<version> first
func MigrateDB(db *sql.DB, dbPath string) error {
	ctx := context.Background()

	if dbPath != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(slogGoose{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	latest := LatestSchemaVersion()
	if current > 0 && current < latest && dbPath != ":memory:" {
		if err := backup(ctx, db, fmt.Sprintf("%s.bak-%d", dbPath, current)); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if current < latest {
		slog.Info("schema_migrated", "from", current, "to", latest, "duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// SchemaVersion returns the applied migration version, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(context.Background(), db)
}

// LatestSchemaVersion returns the highest migration version embedded in the binary.
func LatestSchemaVersion() int64 {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	if err != nil {
		return 0
	}
	var versions []int64
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		if v, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return 0
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions[len(versions)-1]
}

func backup(ctx context.Context, db *sql.DB, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backup before migration: %w", err)
	}
	slog.Info("schema_backup", "path", dest)
	return nil
}

// slogGoose routes goose output through slog.
type slogGoose struct{}

func (slogGoose) Printf(format string, v ...any) {
	slog.Debug("goose", "msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (slogGoose) Fatalf(format string, v ...any) {
	slog.Error("goose", "msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
