package node

import (
	"sync"
	"time"
)

// Metrics is the externally-visible counter set a NodeContext accumulates
// over a node's lifetime.
type Metrics struct {
	TickCount     uint64
	SuccessCount  uint64
	FailureCount  uint64
	MessagesIn    uint64
	MessagesOut   uint64
	WarningCount  uint64
	TotalDuration time.Duration
	LastDuration  time.Duration
	StartedAt     time.Time
	LastTickAt    time.Time
	RestartCount  uint64
}

// ConfigFlags are the small set of per-node policy knobs NodeContext
// exposes directly, as opposed to scheduler-level configuration.
type ConfigFlags struct {
	RestartOnFailure   bool
	MaxRestartAttempts int
}

// Context is the external contract every Node interacts with during Init,
// Tick and Shutdown: metrics, lifecycle state, and config. It is safe for
// concurrent use because async/background/isolated executors may record
// completions from worker goroutines while the driver reads metrics.
type Context struct {
	mu    sync.RWMutex
	state State
	name  string

	metrics Metrics
	config  ConfigFlags

	tickStartedAt time.Time
	publishers    []Topic
	subscribers   []Topic
}

// NewContext constructs a Context for the named node with the given config.
func NewContext(name string, cfg ConfigFlags) *Context {
	return &Context{
		state:   StateUnknown,
		name:    name,
		config:  cfg,
		metrics: Metrics{StartedAt: time.Now()},
	}
}

// Name returns the node name this context was created for.
func (c *Context) Name() string {
	return c.name
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// SetState forces a transition, bypassing validation. Used by the
// scheduler's control-command handling (stop/restart/pause/resume) where
// the transition is externally authorized.
func (c *Context) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Config returns the node's restart policy flags.
func (c *Context) Config() ConfigFlags {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.config
}

// SetConfig replaces the node's restart policy flags.
func (c *Context) SetConfig(cfg ConfigFlags) {
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
}

// StartTick marks the beginning of a tick for duration accounting and
// transitions Initializing -> Running on first successful start.
func (c *Context) StartTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickStartedAt = time.Now()
	if c.state == StateInitializing {
		c.state = StateRunning
	}
}

// RecordTick records a successful tick's duration and bumps counters.
func (c *Context) RecordTick(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TickCount++
	c.metrics.SuccessCount++
	c.metrics.LastDuration = duration
	c.metrics.TotalDuration += duration
	c.metrics.LastTickAt = time.Now()

	if c.state != StateStopped {
		c.state = StateRunning
	}
}

// RecordTickFailure records a failed tick and transitions to Error.
func (c *Context) RecordTickFailure(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TickCount++
	c.metrics.FailureCount++
	c.metrics.LastDuration = duration
	c.metrics.TotalDuration += duration
	c.metrics.LastTickAt = time.Now()
	c.state = StateError
}

// RecordRestart bumps the restart counter and returns whether another
// restart is still permitted under MaxRestartAttempts (<=0 means
// unlimited).
func (c *Context) RecordRestart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.RestartCount++

	if c.config.MaxRestartAttempts <= 0 {
		return true
	}

	return c.metrics.RestartCount <= uint64(c.config.MaxRestartAttempts)
}

// RecordShutdown transitions the node to Stopped.
func (c *Context) RecordShutdown() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
}

// RecordMessagesIn increments the inbound message counter by n.
func (c *Context) RecordMessagesIn(n uint64) {
	c.mu.Lock()
	c.metrics.MessagesIn += n
	c.mu.Unlock()
}

// RecordMessagesOut increments the outbound message counter by n.
func (c *Context) RecordMessagesOut(n uint64) {
	c.mu.Lock()
	c.metrics.MessagesOut += n
	c.mu.Unlock()
}

// RecordWarning increments the warning counter.
func (c *Context) RecordWarning() {
	c.mu.Lock()
	c.metrics.WarningCount++
	c.mu.Unlock()
}

// Metrics returns a snapshot of accumulated metrics.
func (c *Context) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.metrics
}

// Uptime returns the time elapsed since the context was created.
func (c *Context) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Since(c.metrics.StartedAt)
}

// SetTopology records the node's declared publishers and subscribers for
// discovery surfaces consumed by the dependency graph and validator.
func (c *Context) SetTopology(pubs, subs []Topic) {
	c.mu.Lock()
	c.publishers = append([]Topic(nil), pubs...)
	c.subscribers = append([]Topic(nil), subs...)
	c.mu.Unlock()
}

// Publishers returns the node's declared publisher topics.
func (c *Context) Publishers() []Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Topic(nil), c.publishers...)
}

// Subscribers returns the node's declared subscriber topics.
func (c *Context) Subscribers() []Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Topic(nil), c.subscribers...)
}
