// Package events fans registration changes out to in-process subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Change kinds.
const (
	KindRegistered = "registered"
	KindWaitlisted = "waitlisted"
	KindCancelled  = "cancelled"
	KindPromoted   = "promoted"
)

// Wildcard receives every change.
const Wildcard = "*"

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 16

// Change describes one registration state change.
type Change struct {
	Kind           string    `json:"kind"`
	CourseID       string    `json:"courseId"`
	UserID         string    `json:"userId"`
	RegistrationID string    `json:"registrationId"`
	Status         string    `json:"status"`
	At             time.Time `json:"at"`
}

// CourseTopic is the topic for changes on one course.
func CourseTopic(courseID string) string { return "course:" + courseID }

// UserTopic is the topic for changes affecting one user.
func UserTopic(userID string) string { return "user:" + userID }

// Publisher is the write side used by orchestrators.
type Publisher interface {
	Publish(c Change)
}

type subscriber struct {
	ch     chan Change
	topics []string
}

// Hub is an in-process pub/sub keyed by topic.
// INVARIANT: Publish never blocks; a full subscriber misses the change
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), buffer: DefaultBuffer}
}

// Subscribe registers interest in the given topics.
// PRE: at least one topic
// POST: returns a channel receiving matching changes and a func that
// unsubscribes and closes it; a change matching several topics arrives once
func (h *Hub) Subscribe(topics ...string) (<-chan Change, func()) {
	s := &subscriber{ch: make(chan Change, h.buffer), topics: topics}

	h.mu.Lock()
	for _, t := range topics {
		if h.subs[t] == nil {
			h.subs[t] = make(map[*subscriber]struct{})
		}
		h.subs[t][s] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			for _, t := range s.topics {
				delete(h.subs[t], s)
				if len(h.subs[t]) == 0 {
					delete(h.subs, t)
				}
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Publish delivers c to subscribers of its course, its user and the wildcard.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*subscriber]struct{})
	for _, t := range []string{CourseTopic(c.CourseID), UserTopic(c.UserID), Wildcard} {
		for s := range h.subs[t] {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			select {
			case s.ch <- c:
			default:
				slog.Warn("event_dropped", "topic", t, "kind", c.Kind, "course_id", c.CourseID, "user_id", c.UserID)
			}
		}
	}
}

// SubscriberCount returns the number of subscriptions on a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
