package adapters

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpointManagerDueGating(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	m, err := NewCheckpointManager(dir, time.Minute)
	if err != nil {
		t.Fatalf("new checkpoint manager: %v", err)
	}

	now := time.Now()

	if !m.Due(now) {
		t.Fatalf("expected due on first call")
	}

	if _, err := m.Write(Checkpoint{TakenAt: now, TickCount: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if m.Due(now.Add(time.Second)) {
		t.Fatalf("expected not due immediately after a write")
	}

	if !m.Due(now.Add(2 * time.Minute)) {
		t.Fatalf("expected due again after the interval elapses")
	}
}

func TestCheckpointManagerDisabledWithZeroInterval(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never-created")

	m, err := NewCheckpointManager(dir, 0)
	if err != nil {
		t.Fatalf("new checkpoint manager: %v", err)
	}

	if m.Due(time.Now()) {
		t.Fatalf("expected checkpointing disabled with zero interval")
	}
}

func TestCheckpointManagerWritesSequencedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	m, err := NewCheckpointManager(dir, time.Millisecond)
	if err != nil {
		t.Fatalf("new checkpoint manager: %v", err)
	}

	first, err := m.Write(Checkpoint{TakenAt: time.Now(), TickCount: 1})
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}

	second, err := m.Write(Checkpoint{TakenAt: time.Now(), TickCount: 2})
	if err != nil {
		t.Fatalf("write 2: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct checkpoint file names, both were %q", first)
	}
}
