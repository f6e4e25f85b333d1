package email

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Memory logs messages instead of delivering them and keeps a copy of each,
// for development servers and tests.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemory creates an empty Memory sender.
func NewMemory() *Memory {
	return &Memory{}
}

// Send records msg. It never fails.
func (m *Memory) Send(_ context.Context, msg Message) (Receipt, error) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	n := len(m.messages)
	m.mu.Unlock()

	slog.Info("email_logged", "kind", msg.Kind, "subject", msg.Subject)
	return Receipt{ProviderID: "local-" + strconv.Itoa(n), AcceptedAt: time.Now()}, nil
}

// Messages returns a copy of everything sent so far.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
