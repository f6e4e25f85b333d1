package projections

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/registration"
)

// GetMyRegistrationsQuery carries input for a member's bookings.
type GetMyRegistrationsQuery struct {
	UserID           string
	IncludeCancelled bool
	IncludePast      bool
	Now              time.Time
	Location         *time.Location
}

// GetMyRegistrationsDeps holds dependencies for the member bookings view.
type GetMyRegistrationsDeps struct {
	RegistrationStore RegistrationStore
	CourseStore       CourseStore
}

// MyRegistration is one booking with its course.
type MyRegistration struct {
	RegistrationID string        `json:"registrationId"`
	Status         string        `json:"status"`
	Course         course.Course `json:"course"`
	Upcoming       bool          `json:"upcoming"`
}

// QueryGetMyRegistrations lists a member's bookings soonest first.
// PRE: UserID is non-empty
// POST: Rows whose course was deleted are skipped
func QueryGetMyRegistrations(ctx context.Context, query GetMyRegistrationsQuery, deps GetMyRegistrationsDeps) ([]MyRegistration, error) {
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}

	regs, err := deps.RegistrationStore.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	var out []MyRegistration
	for _, r := range regs {
		if r.Status == registration.StatusCancelled && !query.IncludeCancelled {
			continue
		}
		c, err := deps.CourseStore.GetByID(ctx, r.CourseID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		start, err := c.Start(query.Location)
		if err != nil {
			return nil, err
		}
		upcoming := now.Before(start)
		if !upcoming && !query.IncludePast {
			continue
		}
		out = append(out, MyRegistration{RegistrationID: r.ID, Status: r.Status, Course: c, Upcoming: upcoming})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Course, out[j].Course
		if a.CourseDate != b.CourseDate {
			return a.CourseDate < b.CourseDate
		}
		return a.StartTime < b.StartTime
	})
	return out, nil
}
