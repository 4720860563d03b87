package fixsession

import "time"

// Schedule is the wall-clock predicate the engine consults: is this
// moment inside the configured session window, and is the active window
// the same one that was current when t0 was observed (used to detect a
// session-window rollover that should trigger a reset). It is consumed
// as a predicate only; the engine implements no cron-like scheduler.
type Schedule interface {
	IsSessionTime(t time.Time) bool
	IsSameSessionWindow(t1, t2 time.Time) bool
}

// AlwaysOpenSchedule is a Schedule that never closes the session window
// (NonStopSession). Useful for tests and for counterparties that run
// 24/7.
type AlwaysOpenSchedule struct{}

func (AlwaysOpenSchedule) IsSessionTime(time.Time) bool                { return true }
func (AlwaysOpenSchedule) IsSameSessionWindow(time.Time, time.Time) bool { return true }
