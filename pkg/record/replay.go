package record

import (
	"context"
	"fmt"
	"sync"

	"horus/pkg/node"
)

// Override replaces a specific (node, output topic) pair's recorded
// bytes with caller-supplied bytes for what-if replay testing (spec
// §4.11, scenario S6). Overrides never touch the on-disk recording.
type Override struct {
	Node   string
	Output string
	Bytes  []byte
}

// ReplayNode is a shim Node that sources its outputs from a prior
// recording instead of live computation (spec §4.11 "Replay path").
// Determinism mode freezes its outputs to exactly the recorded bytes
// unless an Override applies (spec §5 "Determinism mode").
type ReplayNode struct {
	node.BaseNode

	name      string
	recording NodeRecording
	byTick    map[uint64]Snapshot

	mu        sync.Mutex
	overrides map[string][]byte // output topic -> override bytes
	lastOut   map[string][]byte
	lastIn    map[string][]byte
}

// NewReplayNode builds a shim from a loaded NodeRecording and any
// overrides targeting this node.
func NewReplayNode(rec NodeRecording, overrides []Override) *ReplayNode {
	byTick := make(map[uint64]Snapshot, len(rec.Snapshots))
	for _, snap := range rec.Snapshots {
		byTick[snap.Tick] = snap
	}

	overrideMap := make(map[string][]byte)

	for _, o := range overrides {
		if o.Node == rec.Name {
			overrideMap[o.Output] = o.Bytes
		}
	}

	return &ReplayNode{
		name:      rec.Name,
		recording: rec,
		byTick:    byTick,
		overrides: overrideMap,
	}
}

// Name returns the recorded node's name.
func (n *ReplayNode) Name() string { return n.name }

// Init is a no-op; replay nodes need no user initialization.
func (n *ReplayNode) Init(context.Context, *node.Context) error { return nil }

// Shutdown is a no-op.
func (n *ReplayNode) Shutdown(context.Context) error { return nil }

// ErrNoRecordedTick is returned by OutputsAtTick when the recording has no
// snapshot for the requested tick (replay past the recorded range).
var ErrNoRecordedTick = fmt.Errorf("record: no recorded snapshot for tick")

// Tick does nothing: a ReplayNode is not told the scheduler's current
// tick. The scheduler's replay driver calls OutputsAtTick with the tick
// to serve instead.
func (n *ReplayNode) Tick(ctx context.Context, nctx *node.Context) error {
	return nil
}

// OutputsAtTick returns the outputs the node produced (or the override,
// if one applies) for the given tick, without synthesizing any value not
// present in the recording (spec §3 invariant, §8 invariant 5).
func (n *ReplayNode) OutputsAtTick(tick uint64) (map[string][]byte, error) {
	snap, ok := n.byTick[tick]
	if !ok {
		return nil, fmt.Errorf("%w: node=%s tick=%d", ErrNoRecordedTick, n.name, tick)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[string][]byte, len(snap.Outputs))

	for topic, bytes := range snap.Outputs {
		if override, ok := n.overrides[topic]; ok {
			out[topic] = override

			continue
		}

		out[topic] = bytes
	}

	n.lastOut = out
	n.lastIn = snap.Inputs

	return out, nil
}

// FirstTick and LastTick expose the recorded tick range (spec §3
// invariant: first_tick <= tick <= last_tick).
func (n *ReplayNode) FirstTick() uint64 { return n.recording.FirstTick }
func (n *ReplayNode) LastTick() uint64  { return n.recording.LastTick }
