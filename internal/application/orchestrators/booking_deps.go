package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage"
	planStore "gymdesk/internal/adapters/storage/plan"
	"gymdesk/internal/application/events"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/membership"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/registration"

	"github.com/google/uuid"
)

// BookingAccountStore defines the account store interface needed by the booking engine.
type BookingAccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// BookingMembershipStore defines the membership store interface needed by the booking engine.
type BookingMembershipStore interface {
	ListByUser(ctx context.Context, userID string) ([]membership.Membership, error)
	DecrementCredit(ctx context.Context, id string) (bool, error)
	IncrementCredit(ctx context.Context, id string) error
}

// BookingPlanStore defines the plan store interface needed by the booking engine.
type BookingPlanStore interface {
	List(ctx context.Context, filter planStore.ListFilter) ([]plan.Plan, error)
}

// BookingCourseStore defines the course store interface needed by the booking engine.
type BookingCourseStore interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
}

// BookingRegistrationStore defines the registration store interface needed by the booking engine.
type BookingRegistrationStore interface {
	GetByCourseAndUser(ctx context.Context, courseID, userID string) (registration.Registration, error)
	Upsert(ctx context.Context, r registration.Registration) (registration.Registration, error)
	CountByStatus(ctx context.Context, courseID, status string) (int, error)
	CountUserRegisteredBetween(ctx context.Context, userID, fromDate, toDate string) (int, error)
	ListByCourse(ctx context.Context, courseID, status string) ([]registration.Registration, error)
}

// BookingLedgerStore defines the ledger store interface needed by the booking engine.
type BookingLedgerStore interface {
	Append(ctx context.Context, t ledger.Transaction) error
}

// OutboxStoreForEnqueue defines the outbox store interface needed to enqueue side effects.
type OutboxStoreForEnqueue interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// WaitlistPromoter is told when a roster seat frees up.
type WaitlistPromoter interface {
	SlotOpened(ctx context.Context, courseID string) error
}

// BookingDeps holds the dependencies shared by the booking orchestrators.
// UnitOfWork, Publisher, Promoter and OutboxStore may be nil.
type BookingDeps struct {
	AccountStore      BookingAccountStore
	MembershipStore   BookingMembershipStore
	PlanStore         BookingPlanStore
	CourseStore       BookingCourseStore
	RegistrationStore BookingRegistrationStore
	LedgerStore       BookingLedgerStore
	OutboxStore       OutboxStoreForEnqueue
	UnitOfWork        storage.UnitOfWork
	Publisher         events.Publisher
	Promoter          WaitlistPromoter
	Location          *time.Location
	Now               func() time.Time
	GenerateID        func() string
}

func (d BookingDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d BookingDeps) newID() string {
	if d.GenerateID != nil {
		return d.GenerateID()
	}
	return uuid.New().String()
}

func (d BookingDeps) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.UnitOfWork == nil {
		return fn(ctx)
	}
	return d.UnitOfWork.Atomic(ctx, fn)
}

func (d BookingDeps) gate() booking.DeadlineGate {
	return booking.DeadlineGate{Now: d.now, Location: d.Location}
}

// loadCourse maps a missing course to ErrNotFound and other failures to ErrTransient.
func (d BookingDeps) loadCourse(ctx context.Context, courseID string) (course.Course, error) {
	c, err := d.CourseStore.GetByID(ctx, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return course.Course{}, booking.ErrNotFound
	}
	if err != nil {
		return course.Course{}, booking.Transient("load course", err)
	}
	return c, nil
}

// appendLedger writes a ledger row for a credit movement.
func (d BookingDeps) appendLedger(ctx context.Context, m membership.Membership, delta int, kind, registrationID, reason string) error {
	if d.LedgerStore == nil {
		return nil
	}
	tx := ledger.Transaction{
		ID:             d.newID(),
		MembershipID:   m.ID,
		UserID:         m.UserID,
		Delta:          delta,
		Type:           kind,
		RegistrationID: registrationID,
		Reason:         reason,
		CreatedAt:      d.now(),
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	return d.LedgerStore.Append(ctx, tx)
}

// BookingEmailPayload is the outbox payload for booking notifications.
type BookingEmailPayload struct {
	Kind           string `json:"kind"`
	RegistrationID string `json:"registrationId"`
	CourseID       string `json:"courseId"`
	UserID         string `json:"userId"`
}

// followUp runs the best-effort side effects of a registration change.
// Failures are logged and never returned.
func (d BookingDeps) followUp(ctx context.Context, kind string, r registration.Registration) {
	now := d.now()
	if d.AccountStore != nil && kind != events.KindCancelled {
		if err := d.AccountStore.TouchLastActive(ctx, r.UserID, now); err != nil {
			slog.Warn("mark_active_failed", "user_id", r.UserID, "error", err)
		}
	}
	if d.Publisher != nil {
		d.Publisher.Publish(events.Change{
			Kind:           kind,
			CourseID:       r.CourseID,
			UserID:         r.UserID,
			RegistrationID: r.ID,
			Status:         r.Status,
			At:             now,
		})
	}
	if d.OutboxStore != nil {
		entry, err := outbox.New(d.newID(), outbox.ActionTypeBookingEmail,
			BookingEmailPayload{Kind: kind, RegistrationID: r.ID, CourseID: r.CourseID, UserID: r.UserID}, now)
		if err == nil {
			err = d.OutboxStore.Save(ctx, entry)
		}
		if err != nil {
			slog.Warn("notification_enqueue_failed", "registration_id", r.ID, "kind", kind, "error", err)
		}
	}
}
