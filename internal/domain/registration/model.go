package registration

import (
	"errors"
	"strings"
	"time"
)

// Status constants for the registration lifecycle.
const (
	StatusRegistered = "registered"
	StatusWaitlist   = "waitlist"
	StatusCancelled  = "cancelled"
)

// Domain errors
var (
	ErrEmptyCourseID = errors.New("course ID cannot be empty")
	ErrEmptyUserID   = errors.New("user ID cannot be empty")
	ErrInvalidStatus = errors.New("status must be one of: registered, waitlist, cancelled")
	ErrEmptyTime     = errors.New("registered_at must be set")
)

// Registration is a user's place on a course roster or waitlist.
// INVARIANT: at most one row exists per (CourseID, UserID); cancelling and
// re-registering updates that row instead of inserting another.
type Registration struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	UserID       string    `json:"userId"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks if the Registration has valid data.
// PRE: Registration struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Registration) Validate() error {
	if strings.TrimSpace(r.CourseID) == "" {
		return ErrEmptyCourseID
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	switch r.Status {
	case StatusRegistered, StatusWaitlist, StatusCancelled:
	default:
		return ErrInvalidStatus
	}
	if r.RegisteredAt.IsZero() {
		return ErrEmptyTime
	}
	return nil
}

// IsCancelled reports whether the registration no longer holds a place.
func (r *Registration) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// Cancel marks the registration cancelled and returns the status it held before.
// PRE: registration is not already cancelled
// POST: Status is cancelled, UpdatedAt is now
func (r *Registration) Cancel(now time.Time) string {
	prior := r.Status
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return prior
}
