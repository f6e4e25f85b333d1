package booking

import (
	"time"

	"gymdesk/internal/domain/course"
)

// IsBefore reports whether now is strictly before courseStart - offsetMinutes.
// It is the single gate for both registration and cancellation cutoffs.
func IsBefore(now, courseStart time.Time, offsetMinutes int) bool {
	cutoff := courseStart.Add(-time.Duration(offsetMinutes) * time.Minute)
	return now.Before(cutoff)
}

// DeadlineGate evaluates cutoffs against wall-clock course times in the gym's location.
type DeadlineGate struct {
	Now      func() time.Time
	Location *time.Location
}

// IsBefore parses the course start and applies the pure gate.
// PRE: courseDate is YYYY-MM-DD and startTime is HH:MM
// POST: Returns whether the cutoff is still ahead, or a parse error
func (g DeadlineGate) IsBefore(courseDate, startTime string, offsetMinutes int) (bool, error) {
	start, err := course.StartOf(courseDate, startTime, g.Location)
	if err != nil {
		return false, err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return IsBefore(now(), start, offsetMinutes), nil
}
