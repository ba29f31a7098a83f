package adapters

import "fmt"

// VoteStrategy selects how a redundancy manager reconciles multiple
// replica outputs for the same logical node (spec §4.12 "Redundancy
// manager voting strategy (majority/unanimous) is configured but invoked
// by higher layers; not part of the scheduler's inner loop").
type VoteStrategy string

const (
	VoteMajority  VoteStrategy = "majority"
	VoteUnanimous VoteStrategy = "unanimous"
)

// RedundancyConfig is the configuration the redundancy manager is
// constructed with; the scheduler's inner loop never calls into it
// directly.
type RedundancyConfig struct {
	Factor   int
	Strategy VoteStrategy
}

// ErrNoReplicas is returned by Vote when called with zero candidate
// outputs.
var ErrNoReplicas = fmt.Errorf("adapters: no replica outputs to vote on")

// ErrNoQuorum is returned by Vote when no output reaches the configured
// strategy's required agreement.
var ErrNoQuorum = fmt.Errorf("adapters: no replica output reached quorum")

// RedundancyManager reconciles Factor replica outputs for a node into a
// single agreed-upon result, per the configured VoteStrategy. It is
// invoked by higher layers (a supervising controller outside the
// scheduler), never from the tick loop.
type RedundancyManager struct {
	cfg RedundancyConfig
}

// NewRedundancyManager constructs a manager for cfg.
func NewRedundancyManager(cfg RedundancyConfig) *RedundancyManager {
	return &RedundancyManager{cfg: cfg}
}

// Vote picks the winning byte-slice among outputs under the configured
// strategy. Majority wins with strictly more than half of len(outputs)
// agreeing; Unanimous requires every output to agree.
func (m *RedundancyManager) Vote(outputs [][]byte) ([]byte, error) {
	if len(outputs) == 0 {
		return nil, ErrNoReplicas
	}

	counts := make(map[string]int, len(outputs))
	order := make([]string, 0, len(outputs))

	for _, out := range outputs {
		key := string(out)
		if counts[key] == 0 {
			order = append(order, key)
		}

		counts[key]++
	}

	switch m.cfg.Strategy {
	case VoteUnanimous:
		if len(order) == 1 {
			return []byte(order[0]), nil
		}

		return nil, ErrNoQuorum
	default: // VoteMajority
		threshold := len(outputs)/2 + 1

		for _, key := range order {
			if counts[key] >= threshold {
				return []byte(key), nil
			}
		}

		return nil, ErrNoQuorum
	}
}

// Factor reports the configured replica count.
func (m *RedundancyManager) Factor() int { return m.cfg.Factor }

// Strategy reports the configured voting strategy.
func (m *RedundancyManager) Strategy() VoteStrategy { return m.cfg.Strategy }
