// Package profiler accumulates rolling per-node latency and failure
// statistics during the learning phase (spec §4.7 C4) and reports when
// enough samples exist for the tier classifier to run.
//
// The accumulation is adapted from the teacher's /proc/stat sampler
// (pkg/est/sampler.go), here keyed per node instead of a single host-wide
// utilisation series. Observations arrive through direct, mutex-guarded
// Record calls; there is no channel or accumulator goroutine.
package profiler

import (
	"sync"
	"time"
)

// DefaultMinSamples is the conservative default sample count the learning
// phase requires per node before classification is considered reliable.
// Spec §9 leaves this threshold to the implementation; kept configurable.
const DefaultMinSamples = 200

// Sample is one observed tick duration for a node.
type Sample struct {
	Node      string
	Duration  time.Duration
	Failed    bool
	IOWait    bool
	Timestamp time.Time
}

// Stats is a rolling summary of a node's observed tick durations.
type Stats struct {
	Count       uint64
	Failures    uint64
	IOWaitCount uint64
	Mean        time.Duration
	Max         time.Duration
	Min         time.Duration
	P99         time.Duration

	sum      time.Duration
	sorted   []time.Duration
	sortedOK bool
}

// Profiler accumulates Stats per node and exposes the learning-complete
// predicate driving spec §4.1 step 3 of the tick loop.
type Profiler struct {
	mu         sync.Mutex
	minSamples uint64
	stats      map[string]*Stats
	ticks      uint64
}

// New constructs a Profiler requiring minSamples observations per node
// before LearningComplete reports true. A non-positive value falls back
// to DefaultMinSamples.
func New(minSamples int) *Profiler {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	return &Profiler{
		minSamples: uint64(minSamples),
		stats:      make(map[string]*Stats),
	}
}

// Record folds one observation into the node's rolling stats.
func (p *Profiler) Record(s Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.stats[s.Node]
	if !ok {
		st = &Stats{Min: s.Duration}
		p.stats[s.Node] = st
	}

	st.Count++
	st.sum += s.Duration
	st.Mean = st.sum / time.Duration(st.Count)
	st.sortedOK = false

	if s.Duration > st.Max {
		st.Max = s.Duration
	}

	if st.Min == 0 || s.Duration < st.Min {
		st.Min = s.Duration
	}

	if s.Failed {
		st.Failures++
	}

	if s.IOWait {
		st.IOWaitCount++
	}

	st.sorted = append(st.sorted, s.Duration)
	if len(st.sorted) > 0 {
		recomputeP99(st)
	}
}

func recomputeP99(st *Stats) {
	// Insertion-sort the most recent element into an otherwise-sorted
	// slice; cheap for the bounded per-node sample counts this runtime
	// expects and avoids re-sorting the whole history every tick.
	n := len(st.sorted)
	for i := n - 1; i > 0 && st.sorted[i] < st.sorted[i-1]; i-- {
		st.sorted[i], st.sorted[i-1] = st.sorted[i-1], st.sorted[i]
	}

	idx := int(float64(n) * 0.99)
	if idx >= n {
		idx = n - 1
	}

	st.P99 = st.sorted[idx]
}

// Tick advances the profiler's global tick counter, called once per
// scheduler tick after all nodes have been measured (spec §4.2 step 6).
func (p *Profiler) Tick() {
	p.mu.Lock()
	p.ticks++
	p.mu.Unlock()
}

// Ticks returns the number of scheduler ticks observed.
func (p *Profiler) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ticks
}

// Stats returns a copy of the node's accumulated stats.
func (p *Profiler) Stats(node string) (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.stats[node]
	if !ok {
		return Stats{}, false
	}

	cp := *st
	cp.sorted = nil

	return cp, true
}

// AllStats returns a snapshot of every tracked node's stats, keyed by
// name, for reporting ("print stats" in spec §4.1 step 3).
func (p *Profiler) AllStats() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Stats, len(p.stats))

	for name, st := range p.stats {
		cp := *st
		cp.sorted = nil
		out[name] = cp
	}

	return out
}

// LearningComplete reports whether every node named in nodes has
// accumulated at least minSamples observations.
func (p *Profiler) LearningComplete(nodes []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(nodes) == 0 {
		return false
	}

	for _, name := range nodes {
		st, ok := p.stats[name]
		if !ok || st.Count < p.minSamples {
			return false
		}
	}

	return true
}
