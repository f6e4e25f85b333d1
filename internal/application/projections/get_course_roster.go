package projections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/registration"
)

// GetCourseRosterQuery carries input for the roster view.
type GetCourseRosterQuery struct {
	CourseID string
}

// GetCourseRosterDeps holds dependencies for the roster view.
type GetCourseRosterDeps struct {
	CourseStore       CourseStore
	RegistrationStore RegistrationStore
	AccountStore      AccountStore
}

// RosterEntry is one person on a roster or waitlist.
type RosterEntry struct {
	RegistrationID string `json:"registrationId"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	Email          string `json:"email"`
	Position       int    `json:"position"` // 1-based, by registration time
	RegisteredAt   string `json:"registeredAt"`
}

// CourseRoster is the staff view of a course.
type CourseRoster struct {
	Course     course.Course `json:"course"`
	Registered []RosterEntry `json:"registered"`
	Waitlist   []RosterEntry `json:"waitlist"`
}

// QueryGetCourseRoster returns the roster and waitlist of a course in booking order.
// PRE: CourseID is non-empty
// POST: Waitlist positions reflect promotion order
func QueryGetCourseRoster(ctx context.Context, query GetCourseRosterQuery, deps GetCourseRosterDeps) (CourseRoster, error) {
	c, err := deps.CourseStore.GetByID(ctx, query.CourseID)
	if err != nil {
		return CourseRoster{}, fmt.Errorf("load course: %w", err)
	}
	roster := CourseRoster{Course: c, Registered: []RosterEntry{}, Waitlist: []RosterEntry{}}

	if roster.Registered, err = rosterEntries(ctx, deps, c.ID, registration.StatusRegistered); err != nil {
		return CourseRoster{}, err
	}
	if roster.Waitlist, err = rosterEntries(ctx, deps, c.ID, registration.StatusWaitlist); err != nil {
		return CourseRoster{}, err
	}
	return roster, nil
}

func rosterEntries(ctx context.Context, deps GetCourseRosterDeps, courseID, status string) ([]RosterEntry, error) {
	regs, err := deps.RegistrationStore.ListByCourse(ctx, courseID, status)
	if err != nil {
		return nil, err
	}
	out := make([]RosterEntry, 0, len(regs))
	for i, r := range regs {
		e := RosterEntry{
			RegistrationID: r.ID,
			UserID:         r.UserID,
			Position:       i + 1,
			RegisteredAt:   r.RegisteredAt.Format("2006-01-02 15:04"),
		}
		a, err := deps.AccountStore.GetByID(ctx, r.UserID)
		switch {
		case err == nil:
			e.DisplayName, e.Email = a.DisplayName, a.Email
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
