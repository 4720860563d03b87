// Package schedule implements fixsession.Schedule against a real
// wall-clock trading week instead of the engine's AlwaysOpenSchedule
// test default.
package schedule

import (
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// Window is a single day-of-week session window expressed in a fixed
// location: StartDay/StartTime through EndDay/EndTime, both inclusive
// of the boundary instant. A window that starts and ends on the same
// day is an intraday session; spanning two days models an overnight
// session (e.g. Sunday evening through Friday evening FX markets).
type Window struct {
	StartDay  time.Weekday
	StartTime time.Duration // offset from midnight
	EndDay    time.Weekday
	EndTime   time.Duration
}

// WeeklySchedule implements fixsession.Schedule as a single recurring
// weekly window evaluated in Location.
type WeeklySchedule struct {
	Window   Window
	Location *time.Location
}

// NewWeeklySchedule returns a Schedule open during window, evaluated in
// loc (nil defaults to UTC).
func NewWeeklySchedule(window Window, loc *time.Location) *WeeklySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklySchedule{Window: window, Location: loc}
}

func (w *WeeklySchedule) IsSessionTime(t time.Time) bool {
	return w.offsetWithinWindow(weekOffset(t.In(w.Location)))
}

// IsSameSessionWindow reports whether t1 and t2 fall within the same
// occurrence of the recurring window, used by the engine to detect a
// session-boundary rollover (spec §3 invariant 6) between two observed
// instants.
func (w *WeeklySchedule) IsSameSessionWindow(t1, t2 time.Time) bool {
	s1, e1 := w.windowBounds(t1.In(w.Location))
	s2, e2 := w.windowBounds(t2.In(w.Location))
	return s1.Equal(s2) && e1.Equal(e2)
}

func (w *WeeklySchedule) offsetWithinWindow(offset time.Duration) bool {
	start := dayOffset(w.Window.StartDay) + w.Window.StartTime
	end := dayOffset(w.Window.EndDay) + w.Window.EndTime
	if start <= end {
		return offset >= start && offset <= end
	}
	// window wraps across the end of the week (e.g. Sat evening -> Mon morning)
	return offset >= start || offset <= end
}

// windowBounds returns the absolute start/end instants of the window
// occurrence that contains t, stepping back a week if t falls before
// this week's start.
func (w *WeeklySchedule) windowBounds(t time.Time) (time.Time, time.Time) {
	weekStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, w.Location)
	weekStart = weekStart.AddDate(0, 0, -int(weekStart.Weekday()))

	start := weekStart.AddDate(0, 0, int(w.Window.StartDay)).Add(w.Window.StartTime)
	spanDays := int(w.Window.EndDay) - int(w.Window.StartDay)
	if spanDays < 0 || (spanDays == 0 && w.Window.EndTime < w.Window.StartTime) {
		spanDays += 7
	}
	end := weekStart.AddDate(0, 0, int(w.Window.StartDay)+spanDays).Add(w.Window.EndTime)

	if t.Before(start) {
		start = start.AddDate(0, 0, -7)
		end = end.AddDate(0, 0, -7)
	}
	return start, end
}

func dayOffset(d time.Weekday) time.Duration {
	return time.Duration(d) * 24 * time.Hour
}

func weekOffset(t time.Time) time.Duration {
	return dayOffset(t.Weekday()) + time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

var _ fixsession.Schedule = (*WeeklySchedule)(nil)
