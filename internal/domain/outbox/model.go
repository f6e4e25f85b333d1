// Package outbox holds side effects of a booking change (confirmation mail,
// waitlist promotion) that run after the change commits and are retried
// until they succeed or run out of attempts.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry statuses. Pending and retrying entries are open; done and abandoned
// are settled. Failed entries have used every attempt but an admin may
// still retry them by hand.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

const (
	ActionTypeBookingEmail      = "booking_email"
	ActionTypeWaitlistPromotion = "waitlist_promotion"
)

const DefaultMaxAttempts = 5

var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrEmptyCreatedAt  = errors.New("created_at must be set")
)

// Entry is one queued side effect.
type Entry struct {
	ID              string    `json:"id"`
	ActionType      string    `json:"actionType"`
	Payload         string    `json:"payload"` // JSON handed to the executor
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	MaxAttempts     int       `json:"maxAttempts"`
	NextAttemptAt   time.Time `json:"nextAttemptAt"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	ExternalID      string    `json:"externalId,omitempty"` // mail provider id, promoted count
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

// New builds a pending entry that is due at now.
func New(id, actionType string, payload any, now time.Time) (Entry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s payload: %w", actionType, err)
	}
	e := Entry{ID: id, ActionType: actionType, Payload: string(body), CreatedAt: now}
	return e, e.Validate()
}

// Validate checks required fields and fills defaults.
// POST: Status, MaxAttempts and NextAttemptAt are set
func (e *Entry) Validate() error {
	switch {
	case e.ActionType == "":
		return ErrEmptyActionType
	case e.Payload == "":
		return ErrEmptyPayload
	case e.CreatedAt.IsZero():
		return ErrEmptyCreatedAt
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = e.CreatedAt
	}
	return nil
}

// Open reports whether the background worker will still pick the entry up.
func (e Entry) Open() bool {
	return e.Status == StatusPending || e.Status == StatusRetrying
}

// Settled reports whether the entry is beyond any retry, manual or not.
func (e Entry) Settled() bool {
	return e.Status == StatusDone || e.Status == StatusAbandoned
}

// DueAt reports whether the worker should attempt the entry at now.
func (e Entry) DueAt(now time.Time) bool {
	return e.Open() && !now.Before(e.NextAttemptAt)
}

// Backoff spaces retries: Base after the first failure, doubling per
// further failure, never more than Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// After returns the wait following the given number of failed attempts.
func (b Backoff) After(failures int) time.Duration {
	d := b.Base
	for i := 1; i < failures && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

// Record applies the outcome of an attempt made at now.
// POST: success settles the entry as done; a failure schedules the next
// attempt, or marks the entry failed once MaxAttempts is reached
func (e *Entry) Record(now time.Time, externalID string, err error, b Backoff) {
	e.Attempts++
	e.LastAttemptedAt = now
	if err == nil {
		e.Status = StatusDone
		e.ExternalID = externalID
		e.ErrorMessage = ""
		return
	}
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
		return
	}
	e.Status = StatusRetrying
	e.NextAttemptAt = now.Add(b.After(e.Attempts))
}

// Abandon settles the entry without running it again.
func (e *Entry) Abandon() {
	e.Status = StatusAbandoned
}
