package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Heartbeats writes one file per node into a shared directory, updated by
// the node itself each tick, so external monitors can observe liveness
// even after the scheduler exits (spec §6 "Heartbeats directory").
type Heartbeats struct {
	dir string
}

// NewHeartbeats ensures dir exists and returns a writer rooted at it.
func NewHeartbeats(dir string) (*Heartbeats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("control: create heartbeats dir %q: %w", dir, err)
	}

	return &Heartbeats{dir: dir}, nil
}

// Beat records node's most recent tick time. The file is left in place on
// shutdown, by design: it is the last-known-good liveness record.
func (h *Heartbeats) Beat(node string, at time.Time) error {
	path := filepath.Join(h.dir, node+".heartbeat")

	contents := []byte(at.UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return fmt.Errorf("control: write heartbeat for %s: %w", node, err)
	}

	return nil
}

// LastBeat reads the recorded heartbeat time for node, or the zero time
// if none exists.
func (h *Heartbeats) LastBeat(node string) (time.Time, error) {
	path := filepath.Join(h.dir, node+".heartbeat")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("control: read heartbeat for %s: %w", node, err)
	}

	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("control: parse heartbeat for %s: %w", node, err)
	}

	return t, nil
}
