package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"horus/pkg/node"
)

// IsolatedConfig bounds one node's supervisor (spec §4.8 "IsolatedExecutor").
// Out-of-process runner-binary hosting is not implemented by this
// executor; every isolated node still runs in-process, under its own
// supervisor goroutine, restart policy, and response/heartbeat timeouts.
type IsolatedConfig struct {
	MaxRestarts      int
	RestartDelay     time.Duration
	ResponseTimeout  time.Duration
	HeartbeatTimeout time.Duration
}

// DefaultIsolatedConfig mirrors the safety-critical preset's defaults.
func DefaultIsolatedConfig() IsolatedConfig {
	return IsolatedConfig{
		MaxRestarts:      3,
		RestartDelay:     time.Second,
		ResponseTimeout:  200 * time.Millisecond,
		HeartbeatTimeout: time.Second,
	}
}

type isolatedSupervisor struct {
	rn     *node.RegisteredNode
	cfg    IsolatedConfig
	tickCh chan context.Context
	result chan Result

	mu            sync.Mutex
	restarts      int
	quarantined   bool
	lastHeartbeat time.Time
}

// Isolated runs each spawned node under its own supervisor goroutine so a
// hung or panicking node cannot stall or corrupt the shared driver (spec
// §4.8, §7 "Node crash/hang containment").
type Isolated struct {
	mu          sync.Mutex
	supervisors []*isolatedSupervisor
	cfg         IsolatedConfig
}

// NewIsolated constructs an Isolated executor applying cfg to every node
// it spawns.
func NewIsolated(cfg IsolatedConfig) *Isolated {
	return &Isolated{cfg: cfg}
}

// SpawnNode starts a supervisor goroutine for rn and takes ownership of it.
func (i *Isolated) SpawnNode(rn *node.RegisteredNode) error {
	sup := &isolatedSupervisor{
		rn:            rn,
		cfg:           i.cfg,
		tickCh:        make(chan context.Context),
		result:        make(chan Result, 1),
		lastHeartbeat: time.Now(),
	}

	go sup.run()

	i.mu.Lock()
	i.supervisors = append(i.supervisors, sup)
	i.mu.Unlock()

	return nil
}

func (sup *isolatedSupervisor) run() {
	for ctx := range sup.tickCh {
		start := time.Now()
		err := SafeTick(ctx, sup.rn.Node, sup.rn.Context)
		duration := time.Since(start)

		sup.mu.Lock()
		sup.lastHeartbeat = time.Now()
		sup.mu.Unlock()

		sup.result <- Result{Node: sup.rn.Node.Name(), Success: err == nil, Err: err, Duration: duration}
	}
}

// TickAll sends a tick request to every eligible, non-quarantined node
// and waits up to ResponseTimeout for each to answer. A node that misses
// its deadline is treated as hung: it is restarted (a fresh supervisor
// goroutine replaces the stuck one) up to MaxRestarts times, after which
// it is permanently quarantined.
func (i *Isolated) TickAll(ctx context.Context) []Result {
	i.mu.Lock()
	supervisors := append([]*isolatedSupervisor(nil), i.supervisors...)
	i.mu.Unlock()

	results := make([]Result, 0, len(supervisors))

	for _, sup := range supervisors {
		sup.mu.Lock()
		quarantined := sup.quarantined
		sup.mu.Unlock()

		if quarantined || !sup.rn.EligibleToTick() {
			continue
		}

		results = append(results, i.tickOne(ctx, sup))
	}

	return results
}

func (i *Isolated) tickOne(ctx context.Context, sup *isolatedSupervisor) Result {
	timer := time.NewTimer(sup.cfg.ResponseTimeout)
	defer timer.Stop()

	select {
	case sup.tickCh <- ctx:
	case <-timer.C:
		// Supervisor still busy with a previous tick; treat as a hang.
		return i.handleHang(sup)
	}

	select {
	case r := <-sup.result:
		return r
	case <-timer.C:
		return i.handleHang(sup)
	}
}

func (i *Isolated) handleHang(sup *isolatedSupervisor) Result {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	name := sup.rn.Node.Name()

	if sup.restarts >= sup.cfg.MaxRestarts {
		sup.quarantined = true

		return Result{Node: name, Success: false, Err: fmt.Errorf("node %s quarantined after %d restarts", name, sup.restarts)}
	}

	sup.restarts++

	time.Sleep(sup.cfg.RestartDelay)

	// Abandon the stuck supervisor goroutine (it may still be blocked in
	// Tick forever) and start a fresh one in its place.
	sup.tickCh = make(chan context.Context)
	sup.result = make(chan Result, 1)

	go sup.run()

	return Result{Node: name, Success: false, Err: fmt.Errorf("node %s hung past response timeout, restarted (%d/%d)", name, sup.restarts, sup.cfg.MaxRestarts)}
}

// ShutdownAll calls Shutdown on every initialized owned node.
func (i *Isolated) ShutdownAll(ctx context.Context) error {
	i.mu.Lock()
	supervisors := i.supervisors
	i.mu.Unlock()

	var firstErr error

	for _, sup := range supervisors {
		if !sup.rn.Initialized {
			continue
		}

		if err := sup.rn.Node.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Len reports the number of nodes owned.
func (i *Isolated) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.supervisors)
}

// HeartbeatStale reports whether node's last completed tick is older than
// HeartbeatTimeout, for the safety monitor to feed into its own watchdog
// accounting (spec §4.3 C3 integration).
func (i *Isolated) HeartbeatStale(nodeName string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, sup := range i.supervisors {
		if sup.rn.Node.Name() != nodeName {
			continue
		}

		sup.mu.Lock()
		stale := time.Since(sup.lastHeartbeat) > sup.cfg.HeartbeatTimeout
		sup.mu.Unlock()

		return stale
	}

	return false
}
