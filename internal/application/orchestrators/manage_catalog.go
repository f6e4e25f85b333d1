package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/domain/course"
	"gymdesk/internal/domain/plan"

	"github.com/google/uuid"
)

// PlanStoreForAdmin defines the plan store interface needed by SavePlan.
type PlanStoreForAdmin interface {
	GetByID(ctx context.Context, id string) (plan.Plan, error)
	Save(ctx context.Context, p plan.Plan) error
}

// SavePlanInput carries input for creating or updating a plan. Empty ID creates.
type SavePlanInput struct {
	ID              string
	Name            string
	Rule            plan.BookingRule
	IncludesOpenGym bool
	IsActive        bool
	PriorityRank    int
}

// SavePlanDeps holds dependencies for SavePlan.
type SavePlanDeps struct {
	PlanStore PlanStoreForAdmin
	Now       func() time.Time
}

// ExecuteSavePlan creates or updates a membership plan.
// PRE: Rule parameters match the rule kind
// POST: Plan persisted; CreatedAt preserved on update
func ExecuteSavePlan(ctx context.Context, input SavePlanInput, deps SavePlanDeps) (plan.Plan, error) {
	p := plan.Plan{
		ID:              input.ID,
		Name:            strings.TrimSpace(input.Name),
		Rule:            input.Rule,
		IncludesOpenGym: input.IncludesOpenGym,
		IsActive:        input.IsActive,
		PriorityRank:    input.PriorityRank,
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = clock(deps.Now)
	} else {
		existing, err := deps.PlanStore.GetByID(ctx, p.ID)
		if err != nil {
			return plan.Plan{}, fmt.Errorf("load plan: %w", err)
		}
		p.CreatedAt = existing.CreatedAt
	}

	if err := p.Validate(); err != nil {
		return plan.Plan{}, invalid(err)
	}
	if err := deps.PlanStore.Save(ctx, p); err != nil {
		return plan.Plan{}, err
	}

	slog.Info("admin_event", "event", "plan_saved", "plan_id", p.ID, "rule", p.Rule.Kind)
	return p, nil
}

// CourseStoreForAdmin defines the course store interface needed by SaveCourse.
type CourseStoreForAdmin interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
	Save(ctx context.Context, c course.Course) error
}

// SaveCourseInput carries input for creating or updating a course. Empty ID creates.
type SaveCourseInput struct {
	ID                          string
	Title                       string
	CourseDate                  string
	StartTime                   string
	EndTime                     string
	MaxParticipants             int
	RegistrationDeadlineMinutes int
	CancellationDeadlineMinutes int
	IsCancelled                 bool
}

// SaveCourseDeps holds dependencies for SaveCourse. Promoter may be nil.
type SaveCourseDeps struct {
	CourseStore CourseStoreForAdmin
	Promoter    WaitlistPromoter
}

// ExecuteSaveCourse creates or updates a course.
// PRE: dates are YYYY-MM-DD, times are HH:MM
// POST: Course persisted; a capacity increase tells the promoter seats opened
func ExecuteSaveCourse(ctx context.Context, input SaveCourseInput, deps SaveCourseDeps) (course.Course, error) {
	c := course.Course{
		ID:                          input.ID,
		Title:                       strings.TrimSpace(input.Title),
		CourseDate:                  input.CourseDate,
		StartTime:                   input.StartTime,
		EndTime:                     input.EndTime,
		MaxParticipants:             input.MaxParticipants,
		RegistrationDeadlineMinutes: input.RegistrationDeadlineMinutes,
		CancellationDeadlineMinutes: input.CancellationDeadlineMinutes,
		IsCancelled:                 input.IsCancelled,
	}

	grew := false
	if c.ID == "" {
		c.ID = uuid.New().String()
	} else {
		existing, err := deps.CourseStore.GetByID(ctx, c.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return course.Course{}, fmt.Errorf("load course: %w", err)
		default:
			grew = c.MaxParticipants > existing.MaxParticipants
		}
	}

	if err := c.Validate(); err != nil {
		return course.Course{}, invalid(err)
	}
	if err := deps.CourseStore.Save(ctx, c); err != nil {
		return course.Course{}, err
	}
	slog.Info("admin_event", "event", "course_saved", "course_id", c.ID, "date", c.CourseDate, "capacity", c.MaxParticipants)

	if grew && !c.IsCancelled && deps.Promoter != nil {
		if err := deps.Promoter.SlotOpened(ctx, c.ID); err != nil {
			slog.Warn("promotion_enqueue_failed", "course_id", c.ID, "error", err)
		}
	}
	return c, nil
}

// ErrInvalidInput wraps domain validation failures of admin writes.
var ErrInvalidInput = errors.New("invalid input")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}
