// Package safety implements the WCET/deadline/watchdog monitor and the
// global emergency-stop latch described in spec §4.5.
package safety

import (
	"sync"
	"time"
)

// WCETViolation records an observed overrun of a node's worst-case
// execution time budget.
type WCETViolation struct {
	Node     string
	Observed time.Duration
	Budget   time.Duration
}

// Monitor tracks per-node watchdog deadlines, WCET budgets, deadline-miss
// counters, and the global emergency-stop latch.
type Monitor struct {
	mu sync.Mutex

	maxDeadlineMisses uint32
	emergencyStop     bool

	watchdogExpiry map[string]time.Time
	deadlineMisses map[string]uint32

	now func() time.Time
}

// New constructs a Monitor with the given emergency-stop threshold. A
// threshold of 0 disables the emergency-stop latch (misses are still
// counted, but never trip it).
func New(maxDeadlineMisses uint32) *Monitor {
	return &Monitor{
		maxDeadlineMisses: maxDeadlineMisses,
		watchdogExpiry:    make(map[string]time.Time),
		deadlineMisses:    make(map[string]uint32),
		now:               time.Now,
	}
}

// FeedWatchdog sets the node's next-expiry to now+timeout. Safe to call
// from executor worker goroutines as well as the driver thread (spec §5:
// "safety monitor's watchdog-feed which may be called from executor
// workers through a thread-safe façade") — this Monitor's lock is exactly
// that façade.
func (m *Monitor) FeedWatchdog(node string, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watchdogExpiry[node] = m.now().Add(timeout)
}

// CheckWatchdogs returns the nodes whose watchdog expiry has passed. It
// reports but does not act; callers decide what to do with expired nodes.
func (m *Monitor) CheckWatchdogs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var expired []string

	for name, expiry := range m.watchdogExpiry {
		if now.After(expiry) {
			expired = append(expired, name)
		}
	}

	return expired
}

// CheckWCET compares an observed duration against budget and returns a
// violation if observed exceeds budget by any margin.
func (m *Monitor) CheckWCET(node string, observed, budget time.Duration) (WCETViolation, bool) {
	if budget <= 0 || observed <= budget {
		return WCETViolation{}, false
	}

	return WCETViolation{Node: node, Observed: observed, Budget: budget}, true
}

// RecordDeadlineMiss increments node's miss counter when tickElapsed
// exceeds deadline, latching emergency stop once any node crosses
// maxDeadlineMisses. Returns the node's updated miss count and whether
// this call caused the emergency stop to latch.
func (m *Monitor) RecordDeadlineMiss(node string, tickElapsed, deadline time.Duration) (misses uint32, latched bool) {
	if deadline <= 0 || tickElapsed <= deadline {
		m.mu.Lock()
		misses = m.deadlineMisses[node]
		m.mu.Unlock()

		return misses, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadlineMisses[node]++
	misses = m.deadlineMisses[node]

	if m.maxDeadlineMisses > 0 && misses > m.maxDeadlineMisses && !m.emergencyStop {
		m.emergencyStop = true
		latched = true
	}

	return misses, latched
}

// DeadlineMisses returns the current miss count for node.
func (m *Monitor) DeadlineMisses(node string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deadlineMisses[node]
}

// EmergencyStop reports whether the global emergency-stop latch is set.
// Emergency stop is monotonic: once latched it never clears for this
// Monitor's lifetime (spec §4.5).
func (m *Monitor) EmergencyStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.emergencyStop
}

// Latch forces the emergency-stop latch, e.g. in response to an external
// signal outside the deadline-miss accounting path.
func (m *Monitor) Latch() {
	m.mu.Lock()
	m.emergencyStop = true
	m.mu.Unlock()
}

// WithClock overrides the time source; intended for tests.
func (m *Monitor) WithClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
