package browser_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	web "gymdesk/internal/adapters/http"
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

const testPassword = "TestPass123!"

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Stores  *web.Stores
	AdminID string
}

// newTestApp creates a fully wired app with a temp SQLite DB and starts an HTTP server.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", storage.DSN(dbPath))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(4)
	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	acctStore := accountStore.NewSQLiteStore(db)
	stores := &web.Stores{
		AccountStore:      acctStore,
		PlanStore:         planStore.NewSQLiteStore(db),
		MembershipStore:   membershipStore.NewSQLiteStore(db),
		CourseStore:       courseStore.NewSQLiteStore(db),
		RegistrationStore: registrationStore.NewSQLiteStore(db),
		LedgerStore:       ledgerStore.NewSQLiteStore(db),
		OutboxStore:       outboxStore.NewSQLiteStore(db),
		AuditStore:        auditStore.NewSQLiteStore(db),
		UnitOfWork:        storage.NewTxRunner(db),
		Hub:               events.NewHub(),
		Location:          time.UTC,
	}

	ctx := context.Background()
	adminID, err := orchestrators.ExecuteCreateAccount(ctx, orchestrators.CreateAccountInput{
		Email:    "admin@test.com",
		Password: testPassword,
		Role:     "admin",
	}, orchestrators.AccountDeps{AccountStore: acctStore})
	if err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	web.RateLimitPerSecond = 1000
	mux := web.NewMux("", stores, perf.NewCollector(256))
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/api/me")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Stores:  stores,
		AdminID: adminID,
	}
	t.Cleanup(func() {
		pw.Stop()
		srv.Close()
		db.Close()
	})
	return app
}

// client is one logged-in API caller with its own cookie jar.
type client struct {
	t   *testing.T
	ctx playwright.APIRequestContext
}

// newClient creates a request context and logs in as email.
func (a *testApp) newClient(t *testing.T, email string) *client {
	t.Helper()
	rc, err := a.PW.Request.NewContext(playwright.APIRequestNewContextOptions{BaseURL: playwright.String(a.BaseURL)})
	if err != nil {
		t.Fatalf("failed to create request context: %v", err)
	}
	t.Cleanup(func() { rc.Dispose() })

	c := &client{t: t, ctx: rc}
	status, body := c.post("/api/login", map[string]string{"email": email, "password": testPassword}, nil)
	if status != http.StatusOK {
		t.Fatalf("login as %s: %d %s", email, status, body)
	}
	return c
}

// createMember creates a member account through the admin API and returns its id.
func (a *testApp) createMember(t *testing.T, admin *client, email, name string) string {
	t.Helper()
	var created struct {
		ID string `json:"id"`
	}
	status, body := admin.post("/api/admin/accounts", map[string]string{
		"email": email, "displayName": name, "password": testPassword,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create member %s: %d %s", email, status, body)
	}
	return created.ID
}

// post sends data as JSON and decodes a 2xx body into out when non-nil.
func (c *client) post(path string, data any, out any) (int, string) {
	c.t.Helper()
	resp, err := c.ctx.Post(path, playwright.APIRequestContextPostOptions{
		Data:    data,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		c.t.Fatalf("POST %s failed: %v", path, err)
	}
	return c.read(resp, out)
}

// get fetches path and decodes a 2xx body into out when non-nil.
func (c *client) get(path string, out any) (int, string) {
	c.t.Helper()
	resp, err := c.ctx.Get(path)
	if err != nil {
		c.t.Fatalf("GET %s failed: %v", path, err)
	}
	return c.read(resp, out)
}

func (c *client) read(resp playwright.APIResponse, out any) (int, string) {
	c.t.Helper()
	body, err := resp.Body()
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	if out != nil && resp.Ok() {
		if err := json.Unmarshal(body, out); err != nil {
			c.t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp.Status(), string(body)
}

func decodeInto(t *testing.T, body string, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}
