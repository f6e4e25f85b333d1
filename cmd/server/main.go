package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	emailPkg "gymdesk/internal/adapters/email"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/storage"
	accountStore "gymdesk/internal/adapters/storage/account"
	auditStore "gymdesk/internal/adapters/storage/audit"
	courseStore "gymdesk/internal/adapters/storage/course"
	ledgerStore "gymdesk/internal/adapters/storage/ledger"
	membershipStore "gymdesk/internal/adapters/storage/membership"
	outboxStorePkg "gymdesk/internal/adapters/storage/outbox"
	planStore "gymdesk/internal/adapters/storage/plan"
	registrationStore "gymdesk/internal/adapters/storage/registration"
	"gymdesk/internal/application/events"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/outbox"

	"github.com/google/uuid"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(os.Getenv("GYMDESK_LOG_LEVEL"))})))

	loc, err := time.LoadLocation(envOrDefault("GYMDESK_TZ", "UTC"))
	if err != nil {
		log.Fatalf("invalid GYMDESK_TZ: %v", err)
	}

	dbPath := envOrDefault("GYMDESK_DB_PATH", "gymdesk.db")
	db, err := sql.Open("sqlite", storage.DSN(dbPath))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db, dbPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	log.Println("Database initialized successfully!")

	// Query timing feeds the same collector as request timing
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	acctStore := accountStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		AccountStore:      acctStore,
		PlanStore:         planStore.NewSQLiteStore(timedDB),
		MembershipStore:   membershipStore.NewSQLiteStore(timedDB),
		CourseStore:       courseStore.NewSQLiteStore(timedDB),
		RegistrationStore: registrationStore.NewSQLiteStore(timedDB),
		LedgerStore:       ledgerStore.NewSQLiteStore(timedDB),
		OutboxStore:       outboxStorePkg.NewSQLiteStore(timedDB),
		AuditStore:        auditStore.NewSQLiteStore(timedDB),
		UnitOfWork:        storage.NewTxRunner(timedDB),
		Hub:               events.NewHub(),
		Location:          loc,
	}

	// Seed default admin account if no accounts exist
	adminEmail := envOrDefault("GYMDESK_ADMIN_EMAIL", "admin@gymdesk.local")
	adminPassword := os.Getenv("GYMDESK_ADMIN_PASSWORD")
	if adminPassword == "" {
		if os.Getenv("GYMDESK_ENV") == "production" {
			log.Fatal("GYMDESK_ADMIN_PASSWORD must be set in production")
		}
		adminPassword = "change-me-please"
	}
	seedDeps := orchestrators.AccountDeps{AccountStore: acctStore}
	if err := orchestrators.ExecuteSeedAdmin(context.Background(), seedDeps, adminEmail, adminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	// Configure email sender
	resendKey := os.Getenv("GYMDESK_RESEND_KEY")
	emailFrom := envOrDefault("GYMDESK_RESEND_FROM", "Gym Desk <bookings@gymdesk.local>")
	emailReply := envOrDefault("GYMDESK_REPLY_TO", adminEmail)
	var sender emailPkg.Sender
	if resendKey != "" {
		sender = emailPkg.NewResend(resendKey, emailFrom, emailReply)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewMemory()
		if os.Getenv("GYMDESK_ENV") == "production" {
			log.Println("WARNING: GYMDESK_RESEND_KEY is not set, booking emails are DISABLED in production")
		} else {
			log.Println("Email sender configured (log only, set GYMDESK_RESEND_KEY for real delivery)")
		}
	}

	mux := web.NewMux(envOrDefault("GYMDESK_STATIC_DIR", ""), stores, collector)

	// Deferred side effects: booking mails and waitlist promotion
	outboxStopCh := make(chan struct{})
	defer close(outboxStopCh)
	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeBookingEmail: &orchestrators.BookingEmailExecutor{
			Accounts: stores.AccountStore,
			Courses:  stores.CourseStore,
			Sender:   sender,
			From:     emailFrom,
		},
		outbox.ActionTypeWaitlistPromotion: &orchestrators.WaitlistPromotionExecutor{Deps: web.BookingDeps()},
	})
	web.SetOutboxProcessor(processor)
	orchestrators.StartBackgroundWorker(processor, envDuration("GYMDESK_OUTBOX_INTERVAL", 30*time.Second), outboxStopCh)

	orchestrators.StartRefillWorker(orchestrators.RefillCreditsDeps{
		MembershipStore: stores.MembershipStore,
		PlanStore:       stores.PlanStore,
		LedgerStore:     stores.LedgerStore,
		UnitOfWork:      stores.UnitOfWork,
		Location:        loc,
		Now:             time.Now,
		GenerateID:      func() string { return uuid.New().String() },
	}, envDuration("GYMDESK_REFILL_INTERVAL", time.Hour), outboxStopCh)

	addr := envOrDefault("GYMDESK_ADDR", ":8080")
	log.Printf("gymdesk %s starting on %s (env=%s, tz=%s, schema=%d)", version, addr, envOrDefault("GYMDESK_ENV", "development"), loc, storage.LatestSchemaVersion())

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
