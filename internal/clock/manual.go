package clock

import (
	"sync"
	"time"
)

// Manual is a clock that only moves when Advance is called
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	seq     uint64
	created int
}

type manualTimer struct {
	clock *Manual
	at    time.Time
	seq   uint64
	f     func()
	done  bool
}

// NewManual creates a manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run when the clock reaches now+d
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.created++
	t := &manualTimer{
		clock: m,
		at:    m.now.Add(d),
		seq:   m.seq,
		f:     f,
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order.
// Timers scheduled by a callback fire within the same call if they fall due.
// Callbacks run on the caller's goroutine with no clock lock held.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.remove(next)
		next.done = true
		m.now = next.at
		m.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have not fired or been stopped
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Created returns the number of timers ever scheduled
func (m *Manual) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *Manual) remove(t *manualTimer) {
	for i, p := range m.timers {
		if p == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Stop cancels the timer
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	t.clock.remove(t)
	return true
}
