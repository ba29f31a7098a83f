package control

import (
	"path/filepath"
	"testing"
	"time"
)

func TestHeartbeatsRoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "heartbeats")

	h, err := NewHeartbeats(dir)
	if err != nil {
		t.Fatalf("new heartbeats: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := h.Beat("node-a", now); err != nil {
		t.Fatalf("beat: %v", err)
	}

	got, err := h.LastBeat("node-a")
	if err != nil {
		t.Fatalf("last beat: %v", err)
	}

	if !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}
}

func TestHeartbeatsMissingNodeReturnsZeroTime(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "heartbeats")

	h, err := NewHeartbeats(dir)
	if err != nil {
		t.Fatalf("new heartbeats: %v", err)
	}

	got, err := h.LastBeat("nonexistent")
	if err != nil {
		t.Fatalf("last beat: %v", err)
	}

	if !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}
