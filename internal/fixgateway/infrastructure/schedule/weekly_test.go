package schedule

import (
	"testing"
	"time"
)

// Mon 00:00 through Fri 22:00 UTC, the typical equities-session window.
func weekdaySchedule() *WeeklySchedule {
	return NewWeeklySchedule(Window{
		StartDay:  time.Monday,
		StartTime: 0,
		EndDay:    time.Friday,
		EndTime:   22 * time.Hour,
	}, nil)
}

func TestIsSessionTimeWithinWindow(t *testing.T) {
	s := weekdaySchedule()

	wed := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC) // Wednesday
	if !s.IsSessionTime(wed) {
		t.Fatal("expected Wednesday noon to be within the trading week")
	}
}

func TestIsSessionTimeOutsideWindow(t *testing.T) {
	s := weekdaySchedule()

	sat := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC) // Saturday
	if s.IsSessionTime(sat) {
		t.Fatal("expected Saturday to fall outside the trading week")
	}
}

func TestIsSessionTimeAtBoundary(t *testing.T) {
	s := weekdaySchedule()

	fridayClose := time.Date(2026, 1, 9, 22, 0, 0, 0, time.UTC)
	if !s.IsSessionTime(fridayClose) {
		t.Fatal("window end boundary should be inclusive")
	}

	justAfter := fridayClose.Add(time.Second)
	if s.IsSessionTime(justAfter) {
		t.Fatal("one second past the window end should be closed")
	}
}

func TestIsSameSessionWindowAcrossOneWeek(t *testing.T) {
	s := weekdaySchedule()

	wed1 := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	thu1 := time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC)
	if !s.IsSameSessionWindow(wed1, thu1) {
		t.Fatal("two weekday instants in the same calendar week should share a window occurrence")
	}

	wed2 := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	if s.IsSameSessionWindow(wed1, wed2) {
		t.Fatal("instants a week apart should belong to different window occurrences")
	}
}

func TestWrappingWindow(t *testing.T) {
	// Sat 22:00 through Mon 06:00: wraps across the week boundary
	// (time.Sunday is day 0 of the week).
	s := NewWeeklySchedule(Window{
		StartDay:  time.Saturday,
		StartTime: 22 * time.Hour,
		EndDay:    time.Monday,
		EndTime:   6 * time.Hour,
	}, nil)

	sunNight := time.Date(2026, 1, 4, 23, 0, 0, 0, time.UTC)
	if !s.IsSessionTime(sunNight) {
		t.Fatal("Sunday 23:00 should be inside the wrapping window")
	}

	monMorning := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	if !s.IsSessionTime(monMorning) {
		t.Fatal("Monday 03:00 should still be inside the wrapping window")
	}

	wedAfternoon := time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC)
	if s.IsSessionTime(wedAfternoon) {
		t.Fatal("Wednesday afternoon should be outside the wrapping window")
	}
}
