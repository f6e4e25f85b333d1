package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"time"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/storage"
	accountStore "gymdesk/internal/adapters/storage/account"
	auditStore "gymdesk/internal/adapters/storage/audit"
	courseStore "gymdesk/internal/adapters/storage/course"
	ledgerStore "gymdesk/internal/adapters/storage/ledger"
	membershipStore "gymdesk/internal/adapters/storage/membership"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	planStore "gymdesk/internal/adapters/storage/plan"
	registrationStore "gymdesk/internal/adapters/storage/registration"
	"gymdesk/internal/application/events"
	"gymdesk/internal/application/orchestrators"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore      accountStore.Store
	PlanStore         planStore.Store
	MembershipStore   membershipStore.Store
	CourseStore       courseStore.Store
	RegistrationStore registrationStore.Store
	LedgerStore       ledgerStore.Store
	OutboxStore       outboxStore.Store
	AuditStore        auditStore.Store // nil disables the audit trail
	UnitOfWork        storage.UnitOfWork
	Hub               *events.Hub
	Location          *time.Location // gym wall clock; nil means UTC
}

// loadCSRFKey reads the CSRF secret from GYMDESK_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("GYMDESK_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("GYMDESK_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("GYMDESK_ENV") == "production" {
		log.Fatal("GYMDESK_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key. Set GYMDESK_CSRF_KEY for production.")
	return key
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// outboxProcessor serves admin retries; nil falls back to a processor without executors.
var outboxProcessor *orchestrators.OutboxProcessor

// SetOutboxProcessor installs the processor used by the admin outbox endpoints,
// normally the same one the background worker runs.
func SetOutboxProcessor(p *orchestrators.OutboxProcessor) {
	outboxProcessor = p
}

// NewMux wires HTTP handlers for the app.
func NewMux(staticDir string, s *Stores, collector *perf.Collector) http.Handler {
	stores = s
	perfCollector = collector
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = os.Getenv("GYMDESK_ENV") == "production"

	mux := http.NewServeMux()
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	registerRoutes(mux)

	csrfKey := loadCSRFKey()
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Request order: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, "localhost:8080", "127.0.0.1:8080"),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}

// location returns the gym's wall-clock zone.
func location() *time.Location {
	if stores != nil && stores.Location != nil {
		return stores.Location
	}
	return time.UTC
}

// promoter defers waitlist promotion to the outbox.
func promoter() orchestrators.WaitlistPromoter {
	if stores.OutboxStore == nil {
		return nil
	}
	return &orchestrators.OutboxPromoter{Store: stores.OutboxStore, Now: timeNow, GenerateID: generateID}
}

// BookingDeps assembles the booking engine over the installed stores.
// PRE: NewMux has run
func BookingDeps() orchestrators.BookingDeps {
	deps := orchestrators.BookingDeps{
		AccountStore:      stores.AccountStore,
		MembershipStore:   stores.MembershipStore,
		PlanStore:         stores.PlanStore,
		CourseStore:       stores.CourseStore,
		RegistrationStore: stores.RegistrationStore,
		LedgerStore:       stores.LedgerStore,
		UnitOfWork:        stores.UnitOfWork,
		Promoter:          promoter(),
		Location:          location(),
		Now:               timeNow,
		GenerateID:        generateID,
	}
	if stores.OutboxStore != nil {
		deps.OutboxStore = stores.OutboxStore
	}
	if stores.Hub != nil {
		deps.Publisher = stores.Hub
	}
	return deps
}
