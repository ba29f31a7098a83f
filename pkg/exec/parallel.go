package exec

import (
	"context"
	"sync"
	"time"

	"horus/pkg/node"
)

// Parallel ticks nodes level-by-level in topo order, honoring true
// parallelism within a level up to MaxThreads goroutines in flight at
// once (spec §4.3, §4.8). Levels must be supplied via SetLevels before
// TickAll is useful; an executor with no levels set falls back to
// ticking every spawned node as a single level (spec §4.9 "Cyclic
// pub/sub" fallback).
type Parallel struct {
	mu         sync.Mutex
	byName     map[string]*node.RegisteredNode
	levels     [][]string
	maxThreads int
}

// NewParallel constructs a Parallel executor bounded to maxThreads
// concurrent node ticks per level. A non-positive value means unbounded.
func NewParallel(maxThreads int) *Parallel {
	return &Parallel{byName: make(map[string]*node.RegisteredNode), maxThreads: maxThreads}
}

// SpawnNode registers rn. While no levels are set, every registered node
// is ticked as one level; once SetLevels has run, rn is ticked only if the
// installed levels name it.
func (p *Parallel) SpawnNode(rn *node.RegisteredNode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.byName[rn.Node.Name()] = rn

	return nil
}

// SetLevels installs the dependency-graph-derived topo levels (node names
// only), replacing any levels set before; unknown names are ignored, and
// owned nodes that no level names are not ticked.
func (p *Parallel) SetLevels(levels [][]string) {
	p.mu.Lock()
	p.levels = levels
	p.mu.Unlock()
}

// TickAll ticks every level in order, nodes within a level concurrently.
func (p *Parallel) TickAll(ctx context.Context) []Result {
	p.mu.Lock()
	levels := p.levels
	byName := p.byName
	maxThreads := p.maxThreads
	p.mu.Unlock()

	if len(levels) == 0 {
		levels = [][]string{namesOf(byName)}
	}

	var results []Result

	for _, level := range levels {
		results = append(results, p.tickLevel(ctx, level, byName, maxThreads)...)
	}

	return results
}

func namesOf(byName map[string]*node.RegisteredNode) []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}

	return names
}

func (p *Parallel) tickLevel(
	ctx context.Context,
	level []string,
	byName map[string]*node.RegisteredNode,
	maxThreads int,
) []Result {
	results := make([]Result, len(level))

	var sem chan struct{}
	if maxThreads > 0 {
		sem = make(chan struct{}, maxThreads)
	}

	var wg sync.WaitGroup

	for i, name := range level {
		rn, ok := byName[name]
		if !ok || !rn.EligibleToTick() {
			continue
		}

		wg.Add(1)

		go func(i int, rn *node.RegisteredNode) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			start := time.Now()
			err := SafeTick(ctx, rn.Node, rn.Context)
			results[i] = Result{Node: rn.Node.Name(), Success: err == nil, Err: err, Duration: time.Since(start)}
		}(i, rn)
	}

	wg.Wait()

	compact := results[:0]

	for _, r := range results {
		if r.Node != "" {
			compact = append(compact, r)
		}
	}

	return compact
}

// ShutdownAll calls Shutdown on every initialized owned node, concurrently.
func (p *Parallel) ShutdownAll(ctx context.Context) error {
	p.mu.Lock()
	byName := p.byName
	p.mu.Unlock()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, rn := range byName {
		if !rn.Initialized {
			continue
		}

		wg.Add(1)

		go func(rn *node.RegisteredNode) {
			defer wg.Done()

			if err := rn.Node.Shutdown(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(rn)
	}

	wg.Wait()

	return firstErr
}

// Len reports the number of nodes owned.
func (p *Parallel) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.byName)
}
