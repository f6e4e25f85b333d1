package outbox_test

import (
	"errors"
	"testing"
	"time"

	"gymdesk/internal/domain/outbox"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var backoff = outbox.Backoff{Base: 30 * time.Second, Max: 10 * time.Minute}

func TestNew(t *testing.T) {
	e, err := outbox.New("o1", outbox.ActionTypeWaitlistPromotion, map[string]string{"courseId": "c1"}, t0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Payload != `{"courseId":"c1"}` {
		t.Errorf("Payload = %s", e.Payload)
	}
	if e.Status != outbox.StatusPending || e.MaxAttempts != outbox.DefaultMaxAttempts || !e.NextAttemptAt.Equal(t0) {
		t.Errorf("defaults = %+v", e)
	}
	if !e.DueAt(t0) {
		t.Error("a new entry is due immediately")
	}

	if _, err := outbox.New("o2", "", "x", t0); !errors.Is(err, outbox.ErrEmptyActionType) {
		t.Errorf("got %v, want ErrEmptyActionType", err)
	}
	if _, err := outbox.New("o3", "x", func() {}, t0); err == nil {
		t.Error("expected error for unencodable payload")
	}
}

func TestEntry_Validate(t *testing.T) {
	if err := (&outbox.Entry{ActionType: "x", CreatedAt: t0}).Validate(); err != outbox.ErrEmptyPayload {
		t.Errorf("got %v, want ErrEmptyPayload", err)
	}
	if err := (&outbox.Entry{ActionType: "x", Payload: "{}"}).Validate(); err != outbox.ErrEmptyCreatedAt {
		t.Errorf("got %v, want ErrEmptyCreatedAt", err)
	}
}

// TestEntry_Record walks an entry through failures to exhaustion.
func TestEntry_Record(t *testing.T) {
	e := outbox.Entry{ID: "o1", ActionType: "x", Payload: "{}", CreatedAt: t0, MaxAttempts: 3}
	_ = e.Validate()

	e.Record(t0, "", errors.New("smtp down"), backoff)
	if e.Status != outbox.StatusRetrying || !e.NextAttemptAt.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("after first failure = %+v", e)
	}
	if e.DueAt(t0.Add(29*time.Second)) || !e.DueAt(t0.Add(30*time.Second)) {
		t.Error("entry should wait out the backoff")
	}

	e.Record(t0.Add(time.Minute), "", errors.New("smtp down"), backoff)
	if !e.NextAttemptAt.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("second backoff: NextAttemptAt = %v", e.NextAttemptAt)
	}

	e.Record(t0.Add(3*time.Minute), "", errors.New("smtp down"), backoff)
	if e.Status != outbox.StatusFailed || e.Open() || e.Settled() {
		t.Errorf("after exhausting attempts = %+v", e)
	}
	if e.ErrorMessage != "smtp down" || e.Attempts != 3 {
		t.Errorf("ErrorMessage = %q, Attempts = %d", e.ErrorMessage, e.Attempts)
	}

	e.Record(t0.Add(time.Hour), "msg-1", nil, backoff)
	if e.Status != outbox.StatusDone || e.ExternalID != "msg-1" || e.ErrorMessage != "" || !e.Settled() {
		t.Errorf("after manual success = %+v", e)
	}
}

func TestEntry_Abandon(t *testing.T) {
	e := outbox.Entry{Status: outbox.StatusRetrying, NextAttemptAt: t0}
	e.Abandon()
	if !e.Settled() || e.DueAt(t0) {
		t.Errorf("abandoned entry = %+v", e)
	}
}

func TestBackoff_After(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{4, 4 * time.Minute},
		{6, 10 * time.Minute},
		{1000, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := backoff.After(tt.failures); got != tt.want {
			t.Errorf("After(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}
