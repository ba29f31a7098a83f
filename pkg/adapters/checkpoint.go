// Package adapters implements the C13 scheduler-adjacent adapters: a
// checkpoint manager, a bounded black box event log, a Prometheus
// telemetry exporter, and the redundancy manager's voting configuration
// (spec §4.12). None of these sit on the scheduler's inner tick loop;
// they are invoked at a configured, much slower cadence or by higher
// layers entirely.
package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// NodeCheckpoint is one node's slice of a Checkpoint.
type NodeCheckpoint struct {
	Name       string        `json:"name"`
	TickCount  uint64        `json:"tick_count"`
	ErrorCount uint64        `json:"error_count"`
	Uptime     time.Duration `json:"uptime"`
}

// Checkpoint is a scheduler+per-node snapshot written at a configured
// interval (spec §4.12 "Checkpoint manager").
type Checkpoint struct {
	TakenAt   time.Time        `json:"taken_at"`
	TickCount uint64           `json:"tick_count"`
	Nodes     []NodeCheckpoint `json:"nodes"`
}

// CheckpointManager owns the interval gate and the on-disk writer for
// periodic checkpoints.
type CheckpointManager struct {
	dir      string
	interval time.Duration
	lastAt   time.Time
	seq      uint64
}

// NewCheckpointManager ensures dir exists and returns a manager that
// fires at most once per interval. A non-positive interval disables
// checkpointing (Due always reports false).
func NewCheckpointManager(dir string, interval time.Duration) (*CheckpointManager, error) {
	if interval > 0 {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("adapters: create checkpoint dir %q: %w", dir, err)
		}
	}

	return &CheckpointManager{dir: dir, interval: interval}, nil
}

// Due reports whether a new checkpoint should be taken at now.
func (m *CheckpointManager) Due(now time.Time) bool {
	if m.interval <= 0 {
		return false
	}

	return m.lastAt.IsZero() || now.Sub(m.lastAt) >= m.interval
}

// Write persists cp and advances the interval gate. The file name embeds
// a monotonically increasing sequence so checkpoints never collide
// within the same wall-clock second.
func (m *CheckpointManager) Write(cp Checkpoint) (string, error) {
	data, err := jsonAPI.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("adapters: marshal checkpoint: %w", err)
	}

	m.seq++
	name := fmt.Sprintf("checkpoint-%06d.json", m.seq)
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("adapters: write checkpoint %q: %w", path, err)
	}

	m.lastAt = cp.TakenAt

	return path, nil
}
