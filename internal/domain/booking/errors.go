package booking

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the booking engine. Callers match with errors.Is.
var (
	ErrNoMembership      = errors.New("no active membership")
	ErrOpenGymOnly       = errors.New("membership plan does not include course booking")
	ErrLimitReached      = errors.New("booking limit reached for this period")
	ErrNoCredits         = errors.New("no credits remaining")
	ErrDeadlinePassed    = errors.New("deadline has passed")
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("temporary failure")
	ErrCourseCancelled   = errors.New("course is cancelled")
	ErrAlreadyRegistered = errors.New("already registered for this course")
)

// Reason is the stable, client-facing code of an error kind.
type Reason string

// Reason codes.
const (
	ReasonNone                   Reason = ""
	ReasonNoMembership           Reason = "NoMembership"
	ReasonOpenGymOnlyRestriction Reason = "OpenGymOnlyRestriction"
	ReasonLimitReached           Reason = "LimitReached"
	ReasonNoCredits              Reason = "NoCredits"
	ReasonDeadlinePassed         Reason = "DeadlinePassed"
	ReasonNotFound               Reason = "NotFound"
	ReasonTransientFailure       Reason = "TransientFailure"
	ReasonCourseCancelled        Reason = "CourseCancelled"
	ReasonAlreadyRegistered      Reason = "AlreadyRegistered"
)

var kinds = []struct {
	err     error
	reason  Reason
	message string
}{
	{ErrNoMembership, ReasonNoMembership, "You need an active membership to book courses."},
	{ErrOpenGymOnly, ReasonOpenGymOnlyRestriction, "Your membership covers open gym only and does not include courses."},
	{ErrLimitReached, ReasonLimitReached, "You have reached your booking limit for this period."},
	{ErrNoCredits, ReasonNoCredits, "You have no credits left."},
	{ErrDeadlinePassed, ReasonDeadlinePassed, "The deadline for this course has passed."},
	{ErrNotFound, ReasonNotFound, "We could not find that booking."},
	{ErrCourseCancelled, ReasonCourseCancelled, "This course has been cancelled."},
	{ErrAlreadyRegistered, ReasonAlreadyRegistered, "You are already booked on this course."},
}

const transientMessage = "Something went wrong, please try again."

// ReasonOf maps an error to its reason code. Unknown errors map to TransientFailure.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if errors.Is(err, ErrTransient) {
		return ReasonTransientFailure
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.reason
		}
	}
	return ReasonTransientFailure
}

// UserMessage maps an error to the message shown to the member.
// Raw error text never reaches the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTransient) {
		return transientMessage
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	return transientMessage
}

// Transient wraps a data-layer failure so that it classifies as TransientFailure
// while keeping the cause for logs.
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// errorFor returns the sentinel for an eligibility reason.
func errorFor(r Reason) error {
	for _, k := range kinds {
		if k.reason == r {
			return k.err
		}
	}
	return nil
}
