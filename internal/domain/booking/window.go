package booking

import (
	"fmt"
	"time"

	"gymdesk/internal/domain/plan"
)

// Window is a half-open period [Start, End) used to count limited-rule bookings.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WeekWindow returns the Monday-aligned week containing t, in t's location.
func WeekWindow(t time.Time) Window {
	y, m, d := t.Date()
	sinceMonday := (int(t.Weekday()) + 6) % 7
	start := time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthWindow returns the month-long period containing t that starts on startDay.
// Months shorter than startDay anchor on their last day, so a membership that
// started on the 31st renews on Feb 28/29.
// PRE: 1 <= startDay <= 31
func MonthWindow(t time.Time, startDay int) Window {
	loc := t.Location()
	y, m, d := t.Date()

	anchor := anchorDay(y, m, startDay)
	if d < anchor {
		y, m = addMonths(y, m, -1)
		anchor = anchorDay(y, m, startDay)
	}
	start := time.Date(y, m, anchor, 0, 0, 0, 0, loc)

	ny, nm := addMonths(y, m, 1)
	end := time.Date(ny, nm, anchorDay(ny, nm, startDay), 0, 0, 0, 0, loc)
	return Window{Start: start, End: end}
}

// PeriodWindow returns the window for a limited-rule period.
func PeriodWindow(period string, t time.Time, startDay int) (Window, error) {
	switch period {
	case plan.PeriodWeek:
		return WeekWindow(t), nil
	case plan.PeriodMonth:
		return MonthWindow(t, startDay), nil
	default:
		return Window{}, fmt.Errorf("unknown period %q", period)
	}
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func anchorDay(y int, m time.Month, startDay int) int {
	if startDay < 1 {
		startDay = 1
	}
	if n := daysIn(y, m); startDay > n {
		return n
	}
	return startDay
}

func addMonths(y int, m time.Month, delta int) (int, time.Month) {
	t := time.Date(y, m+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}
