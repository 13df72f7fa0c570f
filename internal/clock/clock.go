// Package clock provides the timer source used by the capture scheduler and
// the cooldown gate.
//
// Real wraps the time package. Manual is a hand-driven clock whose timers fire
// synchronously inside Advance, in deadline order, so timer-driven state
// machines can be tested step by step and their pending timers counted.
package clock

import (
	"time"
)

// Clock schedules one-shot timers
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending one-shot timer
type Timer interface {
	// Stop cancels the timer and reports whether it was still pending
	Stop() bool
}

// Real is the wall clock
type Real struct{}

// New returns the wall clock
func New() Real {
	return Real{}
}

// Now returns the current time
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f on its own goroutine after d
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
