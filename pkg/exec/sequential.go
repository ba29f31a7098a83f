package exec

import (
	"context"
	"time"

	"horus/pkg/node"
)

// Sequential ticks its nodes one at a time, in registration order. It is
// the default executor and the one used during the learning phase (spec
// §4.8).
type Sequential struct {
	nodes []*node.RegisteredNode
}

// NewSequential constructs an empty Sequential executor.
func NewSequential() *Sequential {
	return &Sequential{}
}

// SpawnNode appends rn to the execution order.
func (s *Sequential) SpawnNode(rn *node.RegisteredNode) error {
	s.nodes = append(s.nodes, rn)

	return nil
}

// TickAll ticks every eligible node in order and returns their results.
func (s *Sequential) TickAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(s.nodes))

	for _, rn := range s.nodes {
		if !rn.EligibleToTick() {
			continue
		}

		start := time.Now()
		err := SafeTick(ctx, rn.Node, rn.Context)
		duration := time.Since(start)

		results = append(results, Result{Node: rn.Node.Name(), Success: err == nil, Err: err, Duration: duration})
	}

	return results
}

// ShutdownAll calls Shutdown on every initialized node it owns.
func (s *Sequential) ShutdownAll(ctx context.Context) error {
	var firstErr error

	for _, rn := range s.nodes {
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
func (s *Sequential) Len() int {
	return len(s.nodes)
}
