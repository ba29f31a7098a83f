package node

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"horus/pkg/breaker"
)

// ID is a deterministic node identifier derived from its name, stable
// across runs so a recording made during one run can be replayed against
// a scheduler built from the same topology.
type ID uint64

// DeriveID computes the deterministic identifier for a node name.
func DeriveID(name string) ID {
	return ID(xxhash.Sum64String(name))
}

// Tier names the execution class a node has been assigned, mirroring
// spec §4.7.
type Tier int

const (
	TierUnassigned Tier = iota
	TierUltraFast
	TierFast
	TierParallel
	TierAsyncIO
	TierBackground
	TierIsolated
)

func (t Tier) String() string {
	switch t {
	case TierUltraFast:
		return "ultra_fast"
	case TierFast:
		return "fast"
	case TierParallel:
		return "parallel"
	case TierAsyncIO:
		return "async_io"
	case TierBackground:
		return "background"
	case TierIsolated:
		return "isolated"
	default:
		return "unassigned"
	}
}

// RTSpec carries the real-time parameters of an RT node.
type RTSpec struct {
	IsRT     bool
	WCET     time.Duration
	Deadline time.Duration
}

// JITSpec carries the JIT compilation state for a node.
type JITSpec struct {
	Eligible bool
	Compiled bool
	Compute  ComputeFunc
	Factor   float64
	Offset   float64
}

// Recorder is the narrow interface RegisteredNode needs from the
// recording subsystem, avoiding an import cycle with pkg/record.
type Recorder interface {
	RecordTick(tick uint64, inputs, outputs map[string][]byte) error
}

// RegisteredNode is the scheduler's internal bookkeeping record for a
// Node: everything the driver needs beyond the Node interface itself.
// The scheduler exclusively owns a RegisteredNode for its lifetime;
// executors that accept nodes take ownership transfer and are
// responsible for their shutdown (spec §3 Invariants).
type RegisteredNode struct {
	ID       ID
	Priority uint32
	Logging  bool

	Node    Node
	Context *Context

	Initialized bool
	IsStopped   bool
	IsPaused    bool

	RateHz     float64
	LastTickAt time.Time

	Breaker *breaker.Breaker

	RT  RTSpec
	JIT JITSpec

	Tier Tier

	Recorder Recorder
	IsReplay bool

	insertionSeq int
	execCount    uint64
}

// EligibleToTick reports whether this node should be considered for
// execution this tick, independent of rate gating and breaker state.
func (r *RegisteredNode) EligibleToTick() bool {
	return !r.IsStopped && !r.IsPaused && r.Initialized
}

// NextExecCount increments and returns the node's execution counter,
// used to derive the JIT fast-path input (spec §4.3).
func (r *RegisteredNode) NextExecCount() uint64 {
	r.execCount++
	return r.execCount
}

// InsertionSeq returns the order in which this node was added to the
// scheduler, used as the stable tiebreaker for equal-priority nodes
// (spec §3 Invariants: "Priority ordering is stable").
func (r *RegisteredNode) InsertionSeq() int {
	return r.insertionSeq
}

// SetInsertionSeq is called once by the registry on Add.
func (r *RegisteredNode) SetInsertionSeq(seq int) {
	r.insertionSeq = seq
}
