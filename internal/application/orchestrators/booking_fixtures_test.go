package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	planStore "gymdesk/internal/adapters/storage/plan"
	"gymdesk/internal/application/events"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/registration"
)

// fixedTime is a Monday morning in the gym's location.
var fixedTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

func fixedID() string { return "test-id-001" }

// seqIDs returns a generator of distinct, predictable IDs.
func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

// --- Mock stores ---

type mockAccountStore struct {
	accounts map[string]account.Account
	touched  map[string]time.Time
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account not found: %w", sql.ErrNoRows)
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return account.Account{}, fmt.Errorf("account not found: %w", sql.ErrNoRows)
}

func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.accounts), nil
}

func (m *mockAccountStore) TouchLastActive(_ context.Context, id string, at time.Time) error {
	if m.touched == nil {
		m.touched = make(map[string]time.Time)
	}
	m.touched[id] = at
	return nil
}

type mockMembershipStore struct {
	memberships map[string]membership.Membership
	listErr     error
}

func (m *mockMembershipStore) GetByID(_ context.Context, id string) (membership.Membership, error) {
	ms, ok := m.memberships[id]
	if !ok {
		return membership.Membership{}, sql.ErrNoRows
	}
	return ms, nil
}

func (m *mockMembershipStore) Save(_ context.Context, ms membership.Membership) error {
	m.memberships[ms.ID] = ms
	return nil
}

func (m *mockMembershipStore) ListByUser(_ context.Context, userID string) ([]membership.Membership, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []membership.Membership
	for _, ms := range m.memberships {
		if ms.UserID == userID {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *mockMembershipStore) ListByStatus(_ context.Context, status string) ([]membership.Membership, error) {
	var out []membership.Membership
	for _, ms := range m.memberships {
		if ms.Status == status {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockMembershipStore) DecrementCredit(_ context.Context, id string) (bool, error) {
	ms, ok := m.memberships[id]
	if !ok || ms.Data.RemainingCredits <= 0 {
		return false, nil
	}
	ms.Data.RemainingCredits--
	m.memberships[id] = ms
	return true, nil
}

func (m *mockMembershipStore) IncrementCredit(_ context.Context, id string) error {
	ms, ok := m.memberships[id]
	if !ok {
		return sql.ErrNoRows
	}
	ms.Data.RemainingCredits++
	m.memberships[id] = ms
	return nil
}

func (m *mockMembershipStore) ResetCredits(_ context.Context, id string, amount int, refilledAt time.Time) error {
	ms, ok := m.memberships[id]
	if !ok {
		return sql.ErrNoRows
	}
	ms.Data.RemainingCredits = amount
	ms.Data.LastRefillAt = &refilledAt
	m.memberships[id] = ms
	return nil
}

func (m *mockMembershipStore) credits(id string) int {
	return m.memberships[id].Data.RemainingCredits
}

type mockPlanStore struct {
	plans map[string]plan.Plan
}

func (m *mockPlanStore) GetByID(_ context.Context, id string) (plan.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan not found: %w", sql.ErrNoRows)
	}
	return p, nil
}

func (m *mockPlanStore) Save(_ context.Context, p plan.Plan) error {
	m.plans[p.ID] = p
	return nil
}

func (m *mockPlanStore) List(_ context.Context, filter planStore.ListFilter) ([]plan.Plan, error) {
	var out []plan.Plan
	for _, p := range m.plans {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type mockCourseStore struct {
	courses map[string]course.Course
}

func (m *mockCourseStore) GetByID(_ context.Context, id string) (course.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return course.Course{}, fmt.Errorf("course not found: %w", sql.ErrNoRows)
	}
	return c, nil
}

func (m *mockCourseStore) Save(_ context.Context, c course.Course) error {
	m.courses[c.ID] = c
	return nil
}

// mockRegistrationStore keys rows by course and user, mirroring the unique index.
type mockRegistrationStore struct {
	rows      map[string]registration.Registration
	courses   *mockCourseStore
	upsertErr error
	upserts   int
}

func regKey(courseID, userID string) string { return courseID + "|" + userID }

func (m *mockRegistrationStore) GetByCourseAndUser(_ context.Context, courseID, userID string) (registration.Registration, error) {
	r, ok := m.rows[regKey(courseID, userID)]
	if !ok {
		return registration.Registration{}, fmt.Errorf("registration not found: %w", sql.ErrNoRows)
	}
	return r, nil
}

func (m *mockRegistrationStore) Upsert(_ context.Context, r registration.Registration) (registration.Registration, error) {
	m.upserts++
	if m.upsertErr != nil {
		return registration.Registration{}, m.upsertErr
	}
	if existing, ok := m.rows[regKey(r.CourseID, r.UserID)]; ok {
		r.ID = existing.ID
	}
	m.rows[regKey(r.CourseID, r.UserID)] = r
	return r, nil
}

func (m *mockRegistrationStore) CountByStatus(_ context.Context, courseID, status string) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.CourseID == courseID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockRegistrationStore) CountUserRegisteredBetween(_ context.Context, userID, fromDate, toDate string) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.UserID != userID || r.Status != registration.StatusRegistered {
			continue
		}
		c := m.courses.courses[r.CourseID]
		if c.CourseDate >= fromDate && c.CourseDate < toDate {
			n++
		}
	}
	return n, nil
}

func (m *mockRegistrationStore) ListByCourse(_ context.Context, courseID, status string) ([]registration.Registration, error) {
	var out []registration.Registration
	for _, r := range m.rows {
		if r.CourseID == courseID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (m *mockRegistrationStore) ListByUser(_ context.Context, userID string) ([]registration.Registration, error) {
	var out []registration.Registration
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockLedgerStore struct {
	txs       []ledger.Transaction
	appendErr error
}

func (m *mockLedgerStore) Append(_ context.Context, t ledger.Transaction) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.txs = append(m.txs, t)
	return nil
}

func (m *mockLedgerStore) ListByUser(_ context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := len(m.txs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *mockLedgerStore) ListByMembership(_ context.Context, membershipID string) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range m.txs {
		if t.MembershipID == membershipID {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockOutboxStore implements the full outbox store.
type mockOutboxStore struct {
	entries map[string]outbox.Entry
	order   []string
	saveErr error
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: make(map[string]outbox.Entry)}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, sql.ErrNoRows
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e outbox.Entry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListDue(_ context.Context, now time.Time, limit int) ([]outbox.Entry, error) {
	var out []outbox.Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.DueAt(now) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	var out []outbox.Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.Open() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) ListByStatus(_ context.Context, status string, limit int) ([]outbox.Entry, error) {
	var out []outbox.Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.Status == status && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) PurgeSettled(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, e := range m.entries {
		if e.Settled() && e.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *mockOutboxStore) ofType(actionType string) []outbox.Entry {
	var out []outbox.Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.ActionType == actionType {
			out = append(out, e)
		}
	}
	return out
}

type recordingPublisher struct {
	changes []events.Change
}

func (p *recordingPublisher) Publish(c events.Change) {
	p.changes = append(p.changes, c)
}

type recordingPromoter struct {
	courses []string
	err     error
}

func (p *recordingPromoter) SlotOpened(_ context.Context, courseID string) error {
	p.courses = append(p.courses, courseID)
	return p.err
}

// --- Fixture ---

// bookingFixture is an in-memory gym: accounts, plans, memberships and courses.
type bookingFixture struct {
	accounts      *mockAccountStore
	memberships   *mockMembershipStore
	plans         *mockPlanStore
	courses       *mockCourseStore
	registrations *mockRegistrationStore
	ledger        *mockLedgerStore
	outbox        *mockOutboxStore
	publisher     *recordingPublisher
	promoter      *recordingPromoter
	now           time.Time
	ids           func() string
}

func newBookingFixture() *bookingFixture {
	courses := &mockCourseStore{courses: make(map[string]course.Course)}
	f := &bookingFixture{
		accounts:      &mockAccountStore{accounts: make(map[string]account.Account)},
		memberships:   &mockMembershipStore{memberships: make(map[string]membership.Membership)},
		plans:         &mockPlanStore{plans: make(map[string]plan.Plan)},
		courses:       courses,
		registrations: &mockRegistrationStore{rows: make(map[string]registration.Registration), courses: courses},
		ledger:        &mockLedgerStore{},
		outbox:        newMockOutboxStore(),
		publisher:     &recordingPublisher{},
		promoter:      &recordingPromoter{},
		now:           fixedTime,
		ids:           seqIDs("id"),
	}
	f.plans.plans["plan-unlimited"] = plan.Plan{ID: "plan-unlimited", Name: "Unlimited", Rule: plan.Unlimited(), IsActive: true, PriorityRank: 30}
	f.plans.plans["plan-2week"] = plan.Plan{ID: "plan-2week", Name: "2x per week", Rule: plan.Limited(2, plan.PeriodWeek), IsActive: true, PriorityRank: 20}
	f.plans.plans["plan-1month"] = plan.Plan{ID: "plan-1month", Name: "1x per month", Rule: plan.Limited(1, plan.PeriodMonth), IsActive: true, PriorityRank: 20}
	f.plans.plans["plan-credits"] = plan.Plan{ID: "plan-credits", Name: "10 class card", Rule: plan.Credits(10, plan.RefillNever), IsActive: true, PriorityRank: 10}
	f.plans.plans["plan-monthly-credits"] = plan.Plan{ID: "plan-monthly-credits", Name: "8 a month", Rule: plan.Credits(8, plan.RefillMonthly), IsActive: true, PriorityRank: 10}
	f.plans.plans["plan-opengym"] = plan.Plan{ID: "plan-opengym", Name: "Open gym", Rule: plan.OpenGymOnly(), IncludesOpenGym: true, IsActive: true}
	return f
}

func (f *bookingFixture) deps() BookingDeps {
	return BookingDeps{
		AccountStore:      f.accounts,
		MembershipStore:   f.memberships,
		PlanStore:         f.plans,
		CourseStore:       f.courses,
		RegistrationStore: f.registrations,
		LedgerStore:       f.ledger,
		OutboxStore:       f.outbox,
		Publisher:         f.publisher,
		Promoter:          f.promoter,
		Location:          time.UTC,
		Now:               func() time.Time { return f.now },
		GenerateID:        f.ids,
	}
}

func (f *bookingFixture) addUser(id, role string) {
	f.accounts.accounts[id] = account.Account{ID: id, Email: id + "@gym.test", DisplayName: id, Role: role, CreatedAt: fixedTime}
}

// addMember creates a member with one active membership on planID.
func (f *bookingFixture) addMember(userID, planID string, credits int, start time.Time) string {
	f.addUser(userID, account.RoleMember)
	id := "m-" + userID
	f.memberships.memberships[id] = membership.Membership{
		ID:        id,
		UserID:    userID,
		PlanID:    planID,
		Status:    membership.StatusActive,
		StartDate: start,
		Data:      membership.Data{RemainingCredits: credits},
		CreatedAt: start,
	}
	return id
}

// addCourse creates a course with no deadlines.
func (f *bookingFixture) addCourse(id, date, start string, capacity int) course.Course {
	c := course.Course{
		ID:              id,
		Title:           "Course " + id,
		CourseDate:      date,
		StartTime:       start,
		EndTime:         "23:00",
		MaxParticipants: capacity,
	}
	f.courses.courses[id] = c
	return c
}

func (f *bookingFixture) register(userID, courseID string) (RegisterResult, error) {
	return ExecuteRegisterForCourse(context.Background(), RegisterForCourseInput{UserID: userID, CourseID: courseID}, f.deps())
}

func (f *bookingFixture) cancel(userID, courseID string) (CancelResult, error) {
	return ExecuteCancelRegistration(context.Background(), CancelRegistrationInput{UserID: userID, CourseID: courseID}, f.deps())
}

func (f *bookingFixture) status(userID, courseID string) string {
	return f.registrations.rows[regKey(courseID, userID)].Status
}

var errInjected = errors.New("injected failure")
