// Package node defines the capability set every scheduled unit of work must
// satisfy, plus the scheduler-owned bookkeeping (RegisteredNode) and runtime
// contract (NodeContext) that wraps it.
package node

import "context"

// Topic names a pub/sub channel and the type string carried on it. Type is
// an opaque string compared for exact equality by the topology validator;
// the core never interprets it.
type Topic struct {
	Name string
	Type string
}

// JITArithmeticParams describes a linear transform (factor*x + offset) a
// node may expose so the JIT layer can compile it to a native function
// pointer instead of calling back into Tick.
type JITArithmeticParams struct {
	Factor float64
	Offset float64
}

// ComputeFunc is a raw compute function a node may expose as a JIT
// fast path. It receives a driver-chosen integer input (derived from the
// node's execution count) and returns an integer result; the return value
// itself is discarded by the scheduler, only latency is of interest.
type ComputeFunc func(int64) int64

// Node is the capability set every user-supplied unit of work implements.
// Implementations are free to leave any optional capability as a no-op.
type Node interface {
	// Name returns a stable, UTF-8, scheduler-unique identifier.
	Name() string

	// Init prepares the node for ticking. Called once, or again after a
	// restart clears the initialized flag.
	Init(ctx context.Context, nctx *Context) error

	// Tick performs one unit of work. Must not block the driver thread;
	// nodes with blocking I/O belong in the AsyncIO tier.
	Tick(ctx context.Context, nctx *Context) error

	// Shutdown releases resources. Called at most once per Init.
	Shutdown(ctx context.Context) error

	// OnError is invoked whenever Tick returns an error or panics.
	OnError(err error)

	// Publishers and Subscribers expose this node's declared pub/sub
	// topology for dependency-graph and topology-validator consumption.
	Publishers() []Topic
	Subscribers() []Topic

	// SupportsJIT reports whether JITArithmeticParams or
	// JITCompute may return a usable fast path.
	SupportsJIT() bool
	JITArithmeticParams() (JITArithmeticParams, bool)
	JITCompute() (ComputeFunc, bool)
}

// BaseNode provides zero-value-safe defaults for the optional capabilities
// so concrete node types can embed it and only override what they need,
// mirroring the teacher's preference for small composable structs over
// inheritance hierarchies.
type BaseNode struct{}

// OnError is a no-op default.
func (BaseNode) OnError(error) {}

// Publishers returns no topics by default.
func (BaseNode) Publishers() []Topic { return nil }

// Subscribers returns no topics by default.
func (BaseNode) Subscribers() []Topic { return nil }

// SupportsJIT reports false by default.
func (BaseNode) SupportsJIT() bool { return false }

// JITArithmeticParams reports no usable fast path by default.
func (BaseNode) JITArithmeticParams() (JITArithmeticParams, bool) {
	return JITArithmeticParams{}, false
}

// JITCompute reports no usable fast path by default.
func (BaseNode) JITCompute() (ComputeFunc, bool) { return nil, false }
