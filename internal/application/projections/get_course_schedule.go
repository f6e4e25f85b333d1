package projections

import (
	"context"
	"database/sql"
	"errors"

	courseStore "gymdesk/internal/adapters/storage/course"
	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/registration"
)

// GetCourseScheduleQuery carries input for the course list.
type GetCourseScheduleQuery struct {
	FromDate         string // YYYY-MM-DD, inclusive
	ToDate           string // YYYY-MM-DD, inclusive; empty for open-ended
	UserID           string // optional; fills MyStatus
	IncludeCancelled bool
}

// GetCourseScheduleDeps holds dependencies for the course list.
type GetCourseScheduleDeps struct {
	CourseStore       CourseStore
	RegistrationStore RegistrationStore
}

// CourseSlot is one course with its live occupancy.
type CourseSlot struct {
	Course     course.Course `json:"course"`
	Registered int           `json:"registered"`
	Waitlisted int           `json:"waitlisted"`
	SeatsLeft  int           `json:"seatsLeft"`
	MyStatus   string        `json:"myStatus,omitempty"` // the caller's registration status, if any
}

// QueryGetCourseSchedule lists courses in a date range with roster counts.
// PRE: FromDate is YYYY-MM-DD or empty
// POST: Slots are ordered by date and start time; SeatsLeft >= 0
func QueryGetCourseSchedule(ctx context.Context, query GetCourseScheduleQuery, deps GetCourseScheduleDeps) ([]CourseSlot, error) {
	courses, err := deps.CourseStore.List(ctx, courseStore.ListFilter{
		FromDate:         query.FromDate,
		ToDate:           query.ToDate,
		IncludeCancelled: query.IncludeCancelled,
	})
	if err != nil {
		return nil, err
	}

	slots := make([]CourseSlot, 0, len(courses))
	for _, c := range courses {
		slot := CourseSlot{Course: c}
		if slot.Registered, err = deps.RegistrationStore.CountByStatus(ctx, c.ID, registration.StatusRegistered); err != nil {
			return nil, err
		}
		if slot.Waitlisted, err = deps.RegistrationStore.CountByStatus(ctx, c.ID, registration.StatusWaitlist); err != nil {
			return nil, err
		}
		if left := c.MaxParticipants - slot.Registered; left > 0 {
			slot.SeatsLeft = left
		}

		if query.UserID != "" {
			r, err := deps.RegistrationStore.GetByCourseAndUser(ctx, c.ID, query.UserID)
			switch {
			case err == nil:
				slot.MyStatus = r.Status
			case !errors.Is(err, sql.ErrNoRows):
				return nil, err
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
