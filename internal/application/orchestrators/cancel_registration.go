package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"gymdesk/internal/application/events"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/registration"
)

// CancelRegistrationInput carries input for a cancellation.
type CancelRegistrationInput struct {
	UserID   string
	CourseID string
}

// CancelResult carries the outcome of a cancellation.
type CancelResult struct {
	Registration registration.Registration
	PriorStatus  string
	Refunded     bool
}

// ExecuteCancelRegistration cancels a user's registration or waitlist place.
// PRE: UserID and CourseID are non-empty
// POST: the row is cancelled; a credits booking that held a seat is refunded once
// INVARIANT: cancelling twice returns ErrNotFound and never refunds twice
func ExecuteCancelRegistration(ctx context.Context, input CancelRegistrationInput, deps BookingDeps) (CancelResult, error) {
	var result CancelResult

	err := deps.atomic(ctx, func(ctx context.Context) error {
		reg, err := deps.RegistrationStore.GetByCourseAndUser(ctx, input.CourseID, input.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return booking.ErrNotFound
		}
		if err != nil {
			return booking.Transient("load registration", err)
		}
		if reg.IsCancelled() {
			return booking.ErrNotFound
		}

		c, err := deps.loadCourse(ctx, input.CourseID)
		if err != nil {
			return err
		}
		open, err := deps.gate().IsBefore(c.CourseDate, c.StartTime, c.CancellationDeadlineMinutes)
		if err != nil {
			return booking.Transient("deadline gate", err)
		}
		if !open {
			return booking.ErrDeadlinePassed
		}

		prior := reg.Cancel(deps.now())
		saved, err := deps.RegistrationStore.Upsert(ctx, reg)
		if err != nil {
			return booking.Transient("save registration", err)
		}
		result = CancelResult{Registration: saved, PriorStatus: prior}

		if prior == registration.StatusRegistered {
			result.Refunded = refundCredit(ctx, deps, saved)
		}
		return nil
	})
	if err != nil {
		slog.Info("booking_event", "event", "cancellation_refused",
			"user_id", input.UserID, "course_id", input.CourseID,
			"reason", string(booking.ReasonOf(err)), "error", err)
		return CancelResult{}, err
	}

	slog.Info("booking_event", "event", "course_cancelled",
		"user_id", input.UserID, "course_id", input.CourseID,
		"prior_status", result.PriorStatus, "refunded", result.Refunded)

	deps.followUp(ctx, events.KindCancelled, result.Registration)

	if result.PriorStatus == registration.StatusRegistered && deps.Promoter != nil {
		if err := deps.Promoter.SlotOpened(ctx, input.CourseID); err != nil {
			slog.Warn("waitlist_promotion_trigger_failed", "course_id", input.CourseID, "error", err)
		}
	}
	return result, nil
}

// refundCredit returns one credit when the user's current policy is a credits rule.
// A failed refund is logged and the cancellation stands.
func refundCredit(ctx context.Context, deps BookingDeps, reg registration.Registration) bool {
	policy, found, err := resolvePolicy(ctx, reg.UserID, deps)
	if err != nil {
		slog.Error("refund_failed", "registration_id", reg.ID, "user_id", reg.UserID, "error", err)
		return false
	}
	if !found || !policy.Rule.IsCredits() || !policy.HasMembership() {
		return false
	}
	if err := deps.MembershipStore.IncrementCredit(ctx, policy.Membership.ID); err != nil {
		slog.Error("refund_failed", "registration_id", reg.ID, "membership_id", policy.Membership.ID, "error", err)
		return false
	}
	if err := deps.appendLedger(ctx, policy.Membership, 1, ledger.TypeRefund, reg.ID, "booking cancelled"); err != nil {
		slog.Warn("refund_ledger_failed", "registration_id", reg.ID, "error", err)
	}
	return true
}
