package application

import (
	"sync"
	"time"

	"github.com/rolfea/book-buddy/internal/clock"
)

// DefaultCooldown is the default pause after a new code was found
const DefaultCooldown = 2000 * time.Millisecond

// Switch is what the cooldown gate suppresses
type Switch interface {
	Arm()
	Disarm()
}

// CooldownGate disarms a switch for a fixed duration, then re-arms it.
//
// At most one re-arm timer is pending. Tripping while cooling down cancels
// the pending timer and restarts the countdown from the full duration.
type CooldownGate struct {
	clock    clock.Clock
	duration time.Duration
	target   Switch

	// onElapsed, when set, decides whether the elapsed countdown may re-arm.
	// It must call Release with the generation it was given.
	onElapsed func(gen uint64)

	mutex   sync.Mutex
	cooling bool
	stopped bool
	timer   clock.Timer
	gen     uint64
}

// NewCooldownGate creates a gate over target
func NewCooldownGate(clk clock.Clock, duration time.Duration, target Switch) *CooldownGate {
	if duration <= 0 {
		duration = DefaultCooldown
	}
	return &CooldownGate{
		clock:    clk,
		duration: duration,
		target:   target,
	}
}

// Supervise routes the elapsed countdown through fn instead of re-arming directly
func (g *CooldownGate) Supervise(fn func(gen uint64)) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.onElapsed = fn
}

// Trip disarms the target and (re)starts the countdown
func (g *CooldownGate) Trip() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.stopped {
		return
	}

	g.cancelTimer()
	g.target.Disarm()
	g.cooling = true
	g.gen++
	gen := g.gen
	g.timer = g.clock.AfterFunc(g.duration, func() { g.elapse(gen) })
}

// Release ends the countdown identified by gen and re-arms the target.
// It reports false if that countdown was cancelled or superseded.
func (g *CooldownGate) Release(gen uint64) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.cooling || gen != g.gen || g.stopped {
		return false
	}
	g.cooling = false
	g.timer = nil
	g.target.Arm()
	return true
}

// Cancel drops the pending countdown without re-arming
func (g *CooldownGate) Cancel() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.cancelTimer()
	g.cooling = false
	g.gen++
}

// Stop cancels the countdown for good
func (g *CooldownGate) Stop() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.cancelTimer()
	g.cooling = false
	g.stopped = true
	g.gen++
}

// CoolingDown reports whether a countdown is pending
func (g *CooldownGate) CoolingDown() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.cooling
}

// Duration returns the cooldown length
func (g *CooldownGate) Duration() time.Duration {
	return g.duration
}

func (g *CooldownGate) cancelTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *CooldownGate) elapse(gen uint64) {
	g.mutex.Lock()
	supervisor := g.onElapsed
	g.mutex.Unlock()

	if supervisor != nil {
		supervisor(gen)
		return
	}
	g.Release(gen)
}
