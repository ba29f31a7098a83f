package scheduler

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"horus/pkg/node"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ProfileEntry is one node's precomputed tier assignment and latency
// summary in a profile file (SPEC_FULL.md "Profile file format").
type ProfileEntry struct {
	Name string `json:"name"`
	Tier string `json:"tier"`

	Count    uint64  `json:"count"`
	MeanUS   float64 `json:"mean_us"`
	P99US    float64 `json:"p99_us"`
	Failures uint64  `json:"failures"`
}

// ProfileFile is the top-level document WithProfile decodes.
type ProfileFile struct {
	Nodes []ProfileEntry `json:"nodes"`
}

func tierFromString(s string) (node.Tier, bool) {
	switch s {
	case "ultra_fast":
		return node.TierUltraFast, true
	case "fast":
		return node.TierFast, true
	case "parallel":
		return node.TierParallel, true
	case "async_io":
		return node.TierAsyncIO, true
	case "background":
		return node.TierBackground, true
	case "isolated":
		return node.TierIsolated, true
	default:
		return node.TierUnassigned, false
	}
}

// WithProfile loads a precomputed tier-assignment file as an alternative
// to runtime learning (spec §4.7, SPEC_FULL.md "Profile file format"):
// nodes named in the file skip the learning phase entirely and start
// pinned to their recorded tier. Nodes already registered are re-pinned
// immediately; nodes added afterward pick up their tier at registration.
func (s *Scheduler) WithProfile(path string) (*Scheduler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("scheduler: read profile file %q: %w", path, err)
	}

	var pf ProfileFile
	if err := jsonAPI.Unmarshal(data, &pf); err != nil {
		return s, fmt.Errorf("scheduler: decode profile file %q: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range pf.Nodes {
		t, ok := tierFromString(entry.Tier)
		if !ok {
			return s, fmt.Errorf("scheduler: profile file %q: unknown tier %q for node %s", path, entry.Tier, entry.Name)
		}

		s.preloadedTiers[entry.Name] = t
		s.tierPinned[entry.Name] = true

		if rn, exists := s.byName[entry.Name]; exists {
			rn.Tier = t
		}
	}

	s.learningOn = false
	s.learningDone = true

	return s, nil
}
