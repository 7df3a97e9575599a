// Package clock supplies wall-clock time in the school's time zone.
package clock

import (
	"sync"
	"time"
)

// DateLayout is the calendar-date format used for attendance days.
const DateLayout = "2006-01-02"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the machine clock and converts it to a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a clock in loc; nil means UTC.
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{loc: loc}
}

// Now implements Clock.
func (s System) Now() time.Time {
	return time.Now().In(s.loc)
}

// Fixed is a settable clock for tests and tooling.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Date formats the calendar date of t in t's own location.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// AtTimeOfDay returns the instant on t's calendar day, in t's location,
// at hour:minute:00.
func AtTimeOfDay(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location())
}
