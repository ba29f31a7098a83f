// Package jit implements the optional JIT layer (component C6): nodes
// that expose linear arithmetic parameters or a raw compute function are
// "compiled" into a closure the executors can invoke without going
// through the node's Tick method. When the layer is disabled or a node
// offers neither capability, Compile reports false; the scheduler still
// marks an UltraFast node that reports SupportsJIT as JIT-eligible and
// ticks it through its normal Tick path.
package jit

import "horus/pkg/node"

// Compiled holds the fast-path function pointer for a node plus the
// parameters it was derived from, for diagnostics.
type Compiled struct {
	Node     string
	Factor   float64
	Offset   float64
	FromFunc bool
	Fn       node.ComputeFunc
}

// Layer compiles eligible nodes on demand.
type Layer struct {
	enabled bool
}

// New constructs a Layer. When enabled is false, Compile always reports
// unavailable and callers fall back to the normal Tick path — this is
// the "absent JIT layer" degradation spec §9 requires.
func New(enabled bool) *Layer {
	return &Layer{enabled: enabled}
}

// Enabled reports whether this layer will attempt compilation at all.
func (l *Layer) Enabled() bool {
	return l != nil && l.enabled
}

// Compile attempts to produce a native fast path for n. It prefers a
// raw compute function over arithmetic parameters when both are offered.
func (l *Layer) Compile(n node.Node) (Compiled, bool) {
	if l == nil || !l.enabled || !n.SupportsJIT() {
		return Compiled{}, false
	}

	if fn, ok := n.JITCompute(); ok && fn != nil {
		return Compiled{Node: n.Name(), FromFunc: true, Fn: fn}, true
	}

	if params, ok := n.JITArithmeticParams(); ok {
		factor, offset := params.Factor, params.Offset

		fn := func(x int64) int64 {
			return int64(factor*float64(x)) + int64(offset)
		}

		return Compiled{Node: n.Name(), Factor: factor, Offset: offset, Fn: fn}, true
	}

	return Compiled{}, false
}

// Invoke runs the compiled fast path with a scheduler-chosen input. The
// closure built from JITArithmeticParams cannot panic. A function the node
// returned from JITCompute is called as-is, so a panic inside it reaches
// the caller of Invoke.
func (c Compiled) Invoke(input int64) int64 {
	return c.Fn(input)
}
