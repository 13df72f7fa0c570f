package application

import (
	"sync"
	"time"

	"github.com/rolfea/book-buddy/internal/clock"
)

// DefaultCaptureInterval is the default sampling cadence
const DefaultCaptureInterval = 500 * time.Millisecond

// CaptureScheduler fires the tick handler at a fixed cadence while armed.
// A timer is pending if and only if the scheduler is armed.
type CaptureScheduler struct {
	clock    clock.Clock
	interval time.Duration
	onTick   func()

	mutex   sync.Mutex
	armed   bool
	stopped bool
	timer   clock.Timer
	gen     uint64
}

// NewCaptureScheduler creates a disarmed scheduler
func NewCaptureScheduler(clk clock.Clock, interval time.Duration, onTick func()) *CaptureScheduler {
	if interval <= 0 {
		interval = DefaultCaptureInterval
	}
	return &CaptureScheduler{
		clock:    clk,
		interval: interval,
		onTick:   onTick,
	}
}

// Arm starts ticking. Arming an armed or stopped scheduler is a no-op.
func (s *CaptureScheduler) Arm() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.armed || s.stopped {
		return
	}
	s.armed = true
	s.gen++
	s.schedule(s.gen)
}

// Disarm cancels the pending tick. No tick handler starts after it returns.
func (s *CaptureScheduler) Disarm() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.disarm()
}

// Stop disarms for good
func (s *CaptureScheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopped = true
	s.disarm()
}

// Armed reports whether ticks are scheduled
func (s *CaptureScheduler) Armed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.armed
}

// Interval returns the tick cadence
func (s *CaptureScheduler) Interval() time.Duration {
	return s.interval
}

func (s *CaptureScheduler) disarm() {
	if !s.armed {
		return
	}
	s.armed = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *CaptureScheduler) schedule(gen uint64) {
	s.timer = s.clock.AfterFunc(s.interval, func() { s.fire(gen) })
}

// fire schedules the next tick before running the handler, so a slow grab
// never delays the cadence.
func (s *CaptureScheduler) fire(gen uint64) {
	s.mutex.Lock()
	if !s.armed || gen != s.gen {
		s.mutex.Unlock()
		return
	}
	s.schedule(gen)
	s.mutex.Unlock()

	if s.onTick != nil {
		s.onTick()
	}
}
