package exec

import (
	"context"
	"sync"
	"time"

	"horus/pkg/node"
)

// AsyncIO runs nodes whose tick blocks on I/O under a cooperative model:
// TickAll never blocks waiting for a node's tick to finish. Instead it
// starts a goroutine per eligible node not already in flight, and drains
// whatever AsyncResults have landed on the results channel since the
// previous call (spec §4.8 "AsyncIOExecutor").
type AsyncIO struct {
	mu       sync.Mutex
	nodes    []*node.RegisteredNode
	inFlight map[string]bool

	results chan asyncResult
}

type asyncResult struct {
	Result
}

// NewAsyncIO constructs an AsyncIO executor with a results buffer sized
// for bufSize in-flight completions before TickAll backpressures the
// producing goroutines. A non-positive bufSize defaults to 64.
func NewAsyncIO(bufSize int) *AsyncIO {
	if bufSize <= 0 {
		bufSize = 64
	}

	return &AsyncIO{
		inFlight: make(map[string]bool),
		results:  make(chan asyncResult, bufSize),
	}
}

// SpawnNode appends rn to the pool of nodes this executor drives.
func (a *AsyncIO) SpawnNode(rn *node.RegisteredNode) error {
	a.mu.Lock()
	a.nodes = append(a.nodes, rn)
	a.mu.Unlock()

	return nil
}

// TickAll starts a tick for every eligible node not currently in flight,
// and drains all AsyncResults already completed. It never blocks on a
// node's own Tick duration.
func (a *AsyncIO) TickAll(ctx context.Context) []Result {
	a.mu.Lock()

	for _, rn := range a.nodes {
		name := rn.Node.Name()
		if !rn.EligibleToTick() || a.inFlight[name] {
			continue
		}

		a.inFlight[name] = true

		go a.runTick(ctx, rn)
	}

	a.mu.Unlock()

	var results []Result

drain:
	for {
		select {
		case r := <-a.results:
			results = append(results, r.Result)
		default:
			break drain
		}
	}

	return results
}

func (a *AsyncIO) runTick(ctx context.Context, rn *node.RegisteredNode) {
	start := time.Now()
	err := SafeTick(ctx, rn.Node, rn.Context)
	duration := time.Since(start)

	a.mu.Lock()
	delete(a.inFlight, rn.Node.Name())
	a.mu.Unlock()

	a.results <- asyncResult{Result{Node: rn.Node.Name(), Success: err == nil, Err: err, Duration: duration}}
}

// ShutdownAll calls Shutdown on every initialized owned node. It does not
// wait for in-flight ticks to drain; callers that need a clean stop
// should first stop submitting new ticks and drain TickAll until no
// node remains in flight.
func (a *AsyncIO) ShutdownAll(ctx context.Context) error {
	a.mu.Lock()
	nodes := a.nodes
	a.mu.Unlock()

	var firstErr error

	for _, rn := range nodes {
		if !rn.Initialized {
			continue
		}

		if err := rn.Node.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Len reports the number of nodes owned.
func (a *AsyncIO) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.nodes)
}

// InFlight reports how many node ticks are currently outstanding.
func (a *AsyncIO) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.inFlight)
}
