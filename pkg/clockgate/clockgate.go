// Package clockgate provides the single monotonic time source the runtime
// uses for all rate and deadline math (spec §5 "Time discipline"), plus
// the per-node and global rate gate (component C1) derived from it.
//
// The gate's eligibility check is adapted from the teacher's duty-cycle
// worker pool (a ticker-driven goroutine comparing elapsed time against a
// target quantum): here the "quantum" is a per-node minimum inter-tick
// interval instead of a busy/idle duty cycle.
package clockgate

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so tests can supply a deterministic source.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Gate enforces a global tick period plus optional per-node rate
// overrides. A zero-value Gate is not usable; construct with New.
type Gate struct {
	clock  Clock
	mu     sync.Mutex
	global time.Duration

	lastGlobalTick time.Time
	nodeRates      map[string]nodeRateState
}

type nodeRateState struct {
	period   time.Duration
	lastTick time.Time
}

// New constructs a Gate with the given global tick period.
func New(clock Clock, globalPeriod time.Duration) *Gate {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Gate{
		clock:     clock,
		global:    globalPeriod,
		nodeRates: make(map[string]nodeRateState),
	}
}

// SetNodeRate configures a per-node override rate in Hz. A rate of 0
// removes any override, falling back to the global period.
func (g *Gate) SetNodeRate(node string, hz float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if hz <= 0 {
		delete(g.nodeRates, node)

		return
	}

	existing := g.nodeRates[node]
	existing.period = time.Duration(float64(time.Second) / hz)
	g.nodeRates[node] = existing
}

// Eligible reports whether node is permitted to tick right now, and if so
// records the attempt so subsequent calls respect the rate.
func (g *Gate) Eligible(node string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	state, hasOverride := g.nodeRates[node]
	if !hasOverride {
		return true
	}

	if state.lastTick.IsZero() || now.Sub(state.lastTick) >= state.period {
		state.lastTick = now
		g.nodeRates[node] = state

		return true
	}

	return false
}

// GlobalPeriod returns the configured global tick period.
func (g *Gate) GlobalPeriod() time.Duration {
	return g.global
}

// SetGlobalPeriod updates the configured global tick period.
func (g *Gate) SetGlobalPeriod(period time.Duration) {
	g.mu.Lock()
	g.global = period
	g.mu.Unlock()
}

// SleepDuration returns how long the driver should sleep at the end of a
// tick, given a replay speed multiplier (1.0 = real time; >1.0 = faster
// than real time; values <= 0 are treated as 1.0).
func (g *Gate) SleepDuration(replaySpeed float64) time.Duration {
	g.mu.Lock()
	period := g.global
	g.mu.Unlock()

	if replaySpeed <= 0 {
		replaySpeed = 1.0
	}

	return time.Duration(float64(period) / replaySpeed)
}
