package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/application/events"
	"gymdesk/internal/domain/booking"
	"gymdesk/internal/domain/ledger"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/registration"
)

// PromoteWaitlistInput carries input for waitlist promotion.
type PromoteWaitlistInput struct {
	CourseID string
}

// PromoteWaitlistResult lists who moved onto the roster and who was passed over.
type PromoteWaitlistResult struct {
	Promoted []registration.Registration `json:"promoted"`
	Skipped  []string                    `json:"skipped"` // user IDs left on the waitlist
}

// ExecutePromoteWaitlist fills free roster seats from the waitlist, oldest first.
// PRE: CourseID is non-empty
// POST: registered count <= MaxParticipants; each promoted credits user paid one credit
// INVARIANT: nothing is promoted once the course has started or been cancelled
func ExecutePromoteWaitlist(ctx context.Context, input PromoteWaitlistInput, deps BookingDeps) (PromoteWaitlistResult, error) {
	var result PromoteWaitlistResult

	err := deps.atomic(ctx, func(ctx context.Context) error {
		c, err := deps.loadCourse(ctx, input.CourseID)
		if err != nil {
			return err
		}
		if c.IsCancelled {
			return nil
		}
		upcoming, err := deps.gate().IsBefore(c.CourseDate, c.StartTime, 0)
		if err != nil {
			return booking.Transient("deadline gate", err)
		}
		if !upcoming {
			return nil
		}

		taken, err := deps.RegistrationStore.CountByStatus(ctx, c.ID, registration.StatusRegistered)
		if err != nil {
			return booking.Transient("count roster", err)
		}
		free := c.MaxParticipants - taken
		if free <= 0 {
			return nil
		}

		waiting, err := deps.RegistrationStore.ListByCourse(ctx, c.ID, registration.StatusWaitlist)
		if err != nil {
			return booking.Transient("list waitlist", err)
		}

		for _, w := range waiting {
			if free == 0 {
				break
			}
			elig, policy, err := evaluateEligibility(ctx, w.UserID, c, deps)
			if err != nil {
				return err
			}
			if !elig.CanRegister {
				result.Skipped = append(result.Skipped, w.UserID)
				continue
			}
			if policy.Rule.IsCredits() {
				ok, err := deps.MembershipStore.DecrementCredit(ctx, policy.Membership.ID)
				if err != nil {
					return booking.Transient("deduct credit", err)
				}
				if !ok {
					result.Skipped = append(result.Skipped, w.UserID)
					continue
				}
				if err := deps.appendLedger(ctx, policy.Membership, -1, ledger.TypeDeduction, w.ID, "waitlist promotion"); err != nil {
					return booking.Transient("write ledger", err)
				}
			}

			w.Status = registration.StatusRegistered
			w.UpdatedAt = deps.now()
			saved, err := deps.RegistrationStore.Upsert(ctx, w)
			if err != nil {
				return booking.Transient("save registration", err)
			}
			result.Promoted = append(result.Promoted, saved)
			free--
		}
		return nil
	})
	if err != nil {
		return PromoteWaitlistResult{}, err
	}

	for _, r := range result.Promoted {
		slog.Info("booking_event", "event", "waitlist_promoted", "user_id", r.UserID, "course_id", r.CourseID, "registration_id", r.ID)
		deps.followUp(ctx, events.KindPromoted, r)
	}
	if len(result.Skipped) > 0 {
		slog.Info("booking_event", "event", "waitlist_skipped", "course_id", input.CourseID, "count", len(result.Skipped))
	}
	return result, nil
}

// WaitlistPromotionPayload is the outbox payload for a freed seat.
type WaitlistPromotionPayload struct {
	CourseID string `json:"courseId"`
}

// OutboxPromoter defers promotion to the outbox processor so a cancellation
// never waits on, or fails because of, the waitlist.
type OutboxPromoter struct {
	Store      OutboxStoreForEnqueue
	Now        func() time.Time
	GenerateID func() string
}

var _ WaitlistPromoter = (*OutboxPromoter)(nil)

// SlotOpened enqueues a waitlist_promotion entry for the course.
// PRE: courseID is non-empty
// POST: one pending outbox entry exists for the promotion
func (p *OutboxPromoter) SlotOpened(ctx context.Context, courseID string) error {
	deps := BookingDeps{Now: p.Now, GenerateID: p.GenerateID}
	entry, err := outbox.New(deps.newID(), outbox.ActionTypeWaitlistPromotion, WaitlistPromotionPayload{CourseID: courseID}, deps.now())
	if err != nil {
		return err
	}
	return p.Store.Save(ctx, entry)
}

// WaitlistPromotionExecutor runs promotions queued by OutboxPromoter.
type WaitlistPromotionExecutor struct {
	Deps BookingDeps
}

// Execute promotes from the waitlist of the course named in the payload.
// PRE: payload is valid JSON matching WaitlistPromotionPayload
// POST: returns the number of promoted users as the external ID
// INVARIANT: outbox entry status managed by caller
func (e *WaitlistPromotionExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p WaitlistPromotionPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := ExecutePromoteWaitlist(ctx, PromoteWaitlistInput{CourseID: p.CourseID}, e.Deps)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("promoted:%d", len(res.Promoted)), nil
}
