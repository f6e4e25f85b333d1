package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	outboxStore "gymdesk/internal/adapters/storage/outbox"
	"gymdesk/internal/domain/outbox"
)

var (
	// ErrTerminalEntry is returned when an admin acts on a done or abandoned entry.
	ErrTerminalEntry = errors.New("outbox entry is in a terminal state")
	// ErrNoExecutor is recorded against entries whose action type has no handler.
	ErrNoExecutor = errors.New("no executor for action type")
)

// ActionExecutor runs one kind of queued side effect. The returned string is
// kept on the entry, e.g. the mail provider's message id.
type ActionExecutor interface {
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxProcessor drains due outbox entries and applies retry backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	backoff   outbox.Backoff
	batchSize int
	retention time.Duration
	now       func() time.Time
}

// NewOutboxProcessor creates a processor. Settled entries are kept for a week.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		backoff:   outbox.Backoff{Base: 30 * time.Second, Max: time.Hour},
		batchSize: 10,
		retention: 7 * 24 * time.Hour,
		now:       time.Now,
	}
}

// WithClock replaces the processor's clock.
func (p *OutboxProcessor) WithClock(now func() time.Time) *OutboxProcessor {
	p.now = now
	return p
}

// ProcessPending attempts one batch of due entries.
// POST: each due entry is attempted once and its outcome saved
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	now := p.now()
	entries, err := p.store.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return fmt.Errorf("list due outbox entries: %w", err)
	}
	for _, e := range entries {
		if err := p.attempt(ctx, e, p.executors[e.ActionType], now); err != nil {
			slog.Error("outbox_save_failed", "entry_id", e.ID, "error", err)
		}
	}
	return nil
}

// attempt runs e once and saves the outcome. A nil executor counts as a
// failed attempt so the entry still reaches failed and shows up for an admin.
func (p *OutboxProcessor) attempt(ctx context.Context, e outbox.Entry, exec ActionExecutor, now time.Time) error {
	var externalID string
	var err error
	if exec == nil {
		err = fmt.Errorf("%w %q", ErrNoExecutor, e.ActionType)
	} else {
		externalID, err = exec.Execute(ctx, e.Payload)
	}
	e.Record(now, externalID, err, p.backoff)

	if err != nil {
		slog.Warn("outbox_attempt_failed", "entry_id", e.ID, "action_type", e.ActionType,
			"attempt", e.Attempts, "status", e.Status, "next_attempt_at", e.NextAttemptAt, "error", err)
	} else {
		slog.Info("outbox_attempt_succeeded", "entry_id", e.ID, "action_type", e.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, e)
}

// ProcessSingle runs one entry now, ignoring backoff. Failed entries may be
// retried this way after their attempts are spent.
// POST: ErrTerminalEntry for done or abandoned entries
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) error {
	e, err := p.open(ctx, entryID)
	if err != nil {
		return err
	}
	exec, ok := p.executors[e.ActionType]
	if !ok {
		return fmt.Errorf("entry %s: %w %q", entryID, ErrNoExecutor, e.ActionType)
	}
	return p.attempt(ctx, e, exec, p.now())
}

// AbandonEntry settles an entry without running it.
// POST: ErrTerminalEntry for done or abandoned entries
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	e, err := p.open(ctx, entryID)
	if err != nil {
		return err
	}
	e.Abandon()
	return p.store.Save(ctx, e)
}

func (p *OutboxProcessor) open(ctx context.Context, entryID string) (outbox.Entry, error) {
	e, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return outbox.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if e.Settled() {
		return outbox.Entry{}, fmt.Errorf("entry %s: %w", entryID, ErrTerminalEntry)
	}
	return e, nil
}

// Purge deletes settled entries older than the retention window.
func (p *OutboxProcessor) Purge(ctx context.Context) (int64, error) {
	return p.store.PurgeSettled(ctx, p.now().Add(-p.retention))
}

// StartBackgroundWorker processes due entries and purges old ones every
// interval until stopCh is closed.
func StartBackgroundWorker(processor *OutboxProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				slog.Info("outbox_worker_stopped")
				return
			case <-ticker.C:
				processor.tick()
			}
		}
	}()
}

func (p *OutboxProcessor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := p.ProcessPending(ctx); err != nil {
		slog.Error("outbox_worker_failed", "error", err)
	}
	if n, err := p.Purge(ctx); err != nil {
		slog.Error("outbox_purge_failed", "error", err)
	} else if n > 0 {
		slog.Info("outbox_purged", "entries", n)
	}
}
