package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"gymdesk/internal/application/events"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/registration"
)

// RegisterForCourseInput carries input for a registration.
type RegisterForCourseInput struct {
	UserID   string
	CourseID string
}

// RegisterResult carries the outcome of a registration.
type RegisterResult struct {
	Registration registration.Registration
	Outcome      string // registration.StatusRegistered or registration.StatusWaitlist
	Charged      bool   // one credit was deducted
}

// ExecuteRegisterForCourse books a user onto a course roster, or its waitlist when full.
// PRE: UserID and CourseID are non-empty
// POST: On success exactly one non-cancelled row exists for (course, user); a
// credits booking that lands on the roster has cost exactly one credit
// INVARIANT: a failed registration leaves the credit balance unchanged
func ExecuteRegisterForCourse(ctx context.Context, input RegisterForCourseInput, deps BookingDeps) (RegisterResult, error) {
	start := time.Now()
	var result RegisterResult

	err := deps.atomic(ctx, func(ctx context.Context) error {
		c, err := deps.loadCourse(ctx, input.CourseID)
		if err != nil {
			return err
		}

		elig, policy, err := evaluateEligibility(ctx, input.UserID, c, deps)
		if err != nil {
			return err
		}
		if !elig.Allowed() {
			return elig.Err()
		}

		if c.IsCancelled {
			return booking.ErrCourseCancelled
		}
		open, err := deps.gate().IsBefore(c.CourseDate, c.StartTime, c.RegistrationDeadlineMinutes)
		if err != nil {
			return booking.Transient("deadline gate", err)
		}
		if !open {
			return booking.ErrDeadlinePassed
		}

		existing, lookupErr := deps.RegistrationStore.GetByCourseAndUser(ctx, c.ID, input.UserID)
		switch {
		case lookupErr == nil && !existing.IsCancelled():
			return booking.ErrAlreadyRegistered
		case lookupErr != nil && !errors.Is(lookupErr, sql.ErrNoRows):
			return booking.Transient("load registration", lookupErr)
		}

		taken, err := deps.RegistrationStore.CountByStatus(ctx, c.ID, registration.StatusRegistered)
		if err != nil {
			return booking.Transient("count roster", err)
		}
		outcome := registration.StatusRegistered
		if taken >= c.MaxParticipants {
			outcome = registration.StatusWaitlist
		}

		now := deps.now()
		reg := registration.Registration{
			ID:           deps.newID(),
			CourseID:     c.ID,
			UserID:       input.UserID,
			Status:       outcome,
			RegisteredAt: now,
			UpdatedAt:    now,
		}
		if lookupErr == nil {
			reg.ID = existing.ID
		}

		charged := false
		if outcome == registration.StatusRegistered && policy.Rule.IsCredits() {
			ok, err := deps.MembershipStore.DecrementCredit(ctx, policy.Membership.ID)
			if err != nil {
				return booking.Transient("deduct credit", err)
			}
			if !ok {
				return booking.ErrNoCredits
			}
			charged = true
			if err := deps.appendLedger(ctx, policy.Membership, -1, ledger.TypeDeduction, reg.ID, "course booking"); err != nil {
				compensate(ctx, deps, policy, reg, err)
				return booking.Transient("write ledger", err)
			}
		}

		saved, err := deps.RegistrationStore.Upsert(ctx, reg)
		if err != nil {
			if charged {
				compensate(ctx, deps, policy, reg, err)
			}
			return booking.Transient("save registration", err)
		}

		result = RegisterResult{Registration: saved, Outcome: outcome, Charged: charged}
		return nil
	})
	if err != nil {
		slog.Info("booking_event", "event", "registration_refused",
			"user_id", input.UserID, "course_id", input.CourseID,
			"reason", string(booking.ReasonOf(err)), "error", err)
		return RegisterResult{}, err
	}

	kind := events.KindRegistered
	if result.Outcome == registration.StatusWaitlist {
		kind = events.KindWaitlisted
	}
	slog.Info("booking_event", "event", "course_"+kind,
		"user_id", input.UserID, "course_id", input.CourseID,
		"registration_id", result.Registration.ID, "charged", result.Charged,
		"duration_ms", time.Since(start).Milliseconds())

	deps.followUp(ctx, kind, result.Registration)
	return result, nil
}

// compensate returns a credit taken for a registration that could not be saved.
// Failures here are logged; the caller already reports the original error.
func compensate(ctx context.Context, deps BookingDeps, policy booking.Policy, reg registration.Registration, cause error) {
	if err := deps.MembershipStore.IncrementCredit(ctx, policy.Membership.ID); err != nil {
		slog.Error("compensation_failed", "membership_id", policy.Membership.ID, "registration_id", reg.ID, "cause", cause, "error", err)
		return
	}
	if err := deps.appendLedger(ctx, policy.Membership, 1, ledger.TypeRefund, reg.ID, "registration failed"); err != nil {
		slog.Warn("compensation_ledger_failed", "membership_id", policy.Membership.ID, "error", err)
	}
	slog.Warn("registration_compensated", "membership_id", policy.Membership.ID, "registration_id", reg.ID, "cause", cause)
}
