package exec

import (
	"context"
	"sync"
	"time"

	"horus/pkg/node"
)

// Background runs low-priority nodes on a small fixed worker pool so they
// never compete with higher tiers for goroutine scheduling slots under
// load. TickAll is non-blocking: nodes whose tick hasn't started yet
// because the pool is saturated are simply skipped this round and
// retried on the next (spec §4.8 "BackgroundExecutor").
type Background struct {
	mu      sync.Mutex
	nodes   []*node.RegisteredNode
	pending map[string]bool

	jobs    chan *node.RegisteredNode
	results chan Result
}

// NewBackground constructs a Background executor with a worker pool of
// workers goroutines (minimum 1) and a result buffer of bufSize.
func NewBackground(workers, bufSize int) *Background {
	if workers <= 0 {
		workers = 1
	}

	if bufSize <= 0 {
		bufSize = 64
	}

	b := &Background{
		pending: make(map[string]bool),
		jobs:    make(chan *node.RegisteredNode, bufSize),
		results: make(chan Result, bufSize),
	}

	for i := 0; i < workers; i++ {
		go b.worker()
	}

	return b
}

func (b *Background) worker() {
	for rn := range b.jobs {
		start := time.Now()
		err := SafeTick(context.Background(), rn.Node, rn.Context)
		duration := time.Since(start)

		b.mu.Lock()
		delete(b.pending, rn.Node.Name())
		b.mu.Unlock()

		b.results <- Result{Node: rn.Node.Name(), Success: err == nil, Err: err, Duration: duration}
	}
}

// SpawnNode appends rn to this executor's pool.
func (b *Background) SpawnNode(rn *node.RegisteredNode) error {
	b.mu.Lock()
	b.nodes = append(b.nodes, rn)
	b.mu.Unlock()

	return nil
}

// TickAll submits every eligible, not-already-pending node to the worker
// pool without blocking, then drains any results already completed. A
// node is dropped this round (not an error) if the job queue is full.
func (b *Background) TickAll(ctx context.Context) []Result {
	b.mu.Lock()

	for _, rn := range b.nodes {
		name := rn.Node.Name()
		if !rn.EligibleToTick() || b.pending[name] {
			continue
		}

		select {
		case b.jobs <- rn:
			b.pending[name] = true
		default:
		}
	}

	b.mu.Unlock()

	var results []Result

drain:
	for {
		select {
		case r := <-b.results:
			results = append(results, r)
		default:
			break drain
		}
	}

	return results
}

// ShutdownAll calls Shutdown on every initialized owned node. Workers are
// left running; callers discard the Background executor after shutdown.
func (b *Background) ShutdownAll(ctx context.Context) error {
	b.mu.Lock()
	nodes := b.nodes
	b.mu.Unlock()

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
func (b *Background) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.nodes)
}
