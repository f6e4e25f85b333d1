package course

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layouts for the wall-clock fields of a course.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Domain errors
var (
	ErrEmptyTitle       = errors.New("course title cannot be empty")
	ErrInvalidDate      = errors.New("course date must be YYYY-MM-DD")
	ErrInvalidStartTime = errors.New("start time must be HH:MM")
	ErrInvalidEndTime   = errors.New("end time must be HH:MM")
	ErrInvalidCapacity  = errors.New("max participants must be greater than zero")
	ErrNegativeDeadline = errors.New("deadline minutes cannot be negative")
	ErrEndNotAfterStart = errors.New("end time must be after start time")
)

// Course is a single bookable class on a given date.
// CourseDate/StartTime/EndTime are wall-clock values in the gym's location.
type Course struct {
	ID                          string `json:"id"`
	Title                       string `json:"title"`
	CourseDate                  string `json:"courseDate"` // YYYY-MM-DD
	StartTime                   string `json:"startTime"`  // HH:MM
	EndTime                     string `json:"endTime"`    // HH:MM
	MaxParticipants             int    `json:"maxParticipants"`
	RegistrationDeadlineMinutes int    `json:"registrationDeadlineMinutes"`
	CancellationDeadlineMinutes int    `json:"cancellationDeadlineMinutes"`
	IsCancelled                 bool   `json:"isCancelled"`
}

// Validate checks if the Course has valid data.
// PRE: Course struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if _, err := time.Parse(DateLayout, c.CourseDate); err != nil {
		return ErrInvalidDate
	}
	start, err := time.Parse(TimeLayout, c.StartTime)
	if err != nil {
		return ErrInvalidStartTime
	}
	end, err := time.Parse(TimeLayout, c.EndTime)
	if err != nil {
		return ErrInvalidEndTime
	}
	if !end.After(start) {
		return ErrEndNotAfterStart
	}
	if c.MaxParticipants <= 0 {
		return ErrInvalidCapacity
	}
	if c.RegistrationDeadlineMinutes < 0 || c.CancellationDeadlineMinutes < 0 {
		return ErrNegativeDeadline
	}
	return nil
}

// Start returns the course start instant in the given location.
// PRE: CourseDate and StartTime are well-formed
// POST: Returns the start time or a parse error
func (c *Course) Start(loc *time.Location) (time.Time, error) {
	return StartOf(c.CourseDate, c.StartTime, loc)
}

// StartOf combines a course date and start time into an instant in loc.
func StartOf(courseDate, startTime string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, courseDate+" "+startTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid course start %q %q: %w", courseDate, startTime, err)
	}
	return t, nil
}
