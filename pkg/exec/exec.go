// Package exec implements the multi-tier executors described in spec
// §4.8 (component C8): Sequential, Parallel, AsyncIO, Background, and
// Isolated. All executors share the Executor contract so the scheduler
// can address them uniformly once a node has been migrated to one.
package exec

import (
	"context"
	"fmt"
	"time"

	"horus/pkg/node"
)

// Result is one node's tick outcome, reported back to the scheduler for
// breaker/context/safety bookkeeping.
type Result struct {
	Node     string
	Success  bool
	Err      error
	Duration time.Duration
}

// Executor is the uniform surface every tier implementation exposes
// (spec §4.8 "All executors expose").
type Executor interface {
	// SpawnNode takes ownership of rn. The scheduler must not address rn
	// directly again; only through this Executor (spec §3 Invariants,
	// §5 "Shared resources").
	SpawnNode(rn *node.RegisteredNode) error

	// TickAll drives one round of execution across every spawned node
	// and returns completed results since the previous call.
	TickAll(ctx context.Context) []Result

	// ShutdownAll tears down every spawned node, calling Node.Shutdown
	// on each that was initialized.
	ShutdownAll(ctx context.Context) error

	// Len reports how many nodes this executor currently owns.
	Len() int
}

// SafeTick invokes n.Tick under a recover() guard, translating a panic
// into a TickFailure-class error instead of crashing the driver (spec
// §7, §9 "Panic-isolated tick").
func SafeTick(ctx context.Context, n node.Node, nctx *node.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic in node %s: %v", n.Name(), r)
		}
	}()

	return n.Tick(ctx, nctx)
}
