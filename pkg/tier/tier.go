// Package tier classifies nodes into execution tiers from profiler stats,
// per spec §4.7's heuristic table (C5).
package tier

import (
	"time"

	"horus/pkg/node"
	"horus/pkg/profiler"
)

// Thresholds bundles the conservative default cutoffs spec §9 leaves to
// the implementation. All are configurable.
type Thresholds struct {
	// UltraFastP99 is the p99 latency below which a node (with no I/O
	// signal) is classified UltraFast.
	UltraFastP99 time.Duration
	// IOWaitRatio is the fraction of samples with an observed I/O-wait
	// signal above which a node is classified AsyncIO.
	IOWaitRatio float64
	// FailureRatio is the fraction of failed samples above which a node
	// is classified Isolated regardless of latency.
	FailureRatio float64
	// BackgroundPriority is the priority value (lower = higher priority
	// per spec §3) at or above which a low-priority, latency-insensitive
	// node may be classified Background.
	BackgroundPriority uint32
}

// DefaultThresholds returns conservative defaults per spec §9's guidance
// to "pick conservative defaults and make them configurable".
func DefaultThresholds() Thresholds {
	return Thresholds{
		UltraFastP99:       50 * time.Microsecond,
		IOWaitRatio:        0.2,
		FailureRatio:       0.1,
		BackgroundPriority: 900,
	}
}

// Classifier maps accumulated profiler stats to a node.Tier.
type Classifier struct {
	thresholds Thresholds
}

// New constructs a Classifier with the given thresholds. A zero-value
// Thresholds falls back to DefaultThresholds.
func New(t Thresholds) *Classifier {
	if t.UltraFastP99 == 0 {
		t = DefaultThresholds()
	}

	return &Classifier{thresholds: t}
}

// Input bundles the facts the classifier needs about one node.
type Input struct {
	Name           string
	Priority       uint32
	Stats          profiler.Stats
	HasDependents  bool
	DependencyFree bool
}

// Classify assigns a tier to a single node.
func (c *Classifier) Classify(in Input) node.Tier {
	st := in.Stats

	if st.Count == 0 {
		return node.TierFast
	}

	failureRatio := float64(st.Failures) / float64(st.Count)
	if failureRatio > c.thresholds.FailureRatio {
		return node.TierIsolated
	}

	ioRatio := float64(st.IOWaitCount) / float64(st.Count)
	if ioRatio > c.thresholds.IOWaitRatio {
		return node.TierAsyncIO
	}

	if st.P99 < c.thresholds.UltraFastP99 && ioRatio == 0 {
		return node.TierUltraFast
	}

	if in.Priority >= c.thresholds.BackgroundPriority {
		return node.TierBackground
	}

	if in.DependencyFree {
		return node.TierParallel
	}

	return node.TierFast
}

// ClassifyAll classifies a batch of nodes, returning a map keyed by name.
func (c *Classifier) ClassifyAll(inputs []Input) map[string]node.Tier {
	out := make(map[string]node.Tier, len(inputs))

	for _, in := range inputs {
		out[in.Name] = c.Classify(in)
	}

	return out
}

// Distribution tallies how many nodes fall into each tier, for the
// "print distribution" step in spec §4.1.
func Distribution(assignments map[string]node.Tier) map[node.Tier]int {
	dist := make(map[node.Tier]int)
	for _, t := range assignments {
		dist[t]++
	}

	return dist
}
