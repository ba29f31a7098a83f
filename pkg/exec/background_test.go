package exec

import (
	"context"
	"testing"
	"time"
)

func TestBackgroundDrainsCompletedResults(t *testing.T) {
	t.Parallel()

	b := NewBackground(2, 8)
	n := &countingNode{name: "bg1"}

	if err := b.SpawnNode(registeredOf(n)); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	b.TickAll(context.Background())

	deadline := time.After(time.Second)

	var results []Result

	for len(results) == 0 {
		select {
		case <-deadline:
			t.Fatalf("never observed a completed result")
		default:
			results = b.TickAll(context.Background())
		}
	}

	if results[0].Node != "bg1" || !results[0].Success {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestBackgroundDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	b := NewBackground(1, 1)

	slow := &blockingNode{name: "slow", release: make(chan struct{})}
	if err := b.SpawnNode(registeredOf(slow)); err != nil {
		t.Fatalf("spawn slow: %v", err)
	}

	other := &countingNode{name: "other"}
	if err := b.SpawnNode(registeredOf(other)); err != nil {
		t.Fatalf("spawn other: %v", err)
	}

	// First tick fills the single worker with slow (blocked) and the
	// single-slot queue with other; both are now pending.
	b.TickAll(context.Background())

	// Second tick should drop both since they are already pending and
	// the job channel has no room regardless.
	results := b.TickAll(context.Background())
	if len(results) != 0 {
		t.Fatalf("expected no results yet, got %d", len(results))
	}

	close(slow.release)

	deadline := time.After(time.Second)

	seen := make(map[string]bool)

	for len(seen) < 2 {
		select {
		case <-deadline:
			t.Fatalf("did not observe both nodes complete, saw %v", seen)
		default:
			for _, r := range b.TickAll(context.Background()) {
				seen[r.Node] = true
			}
		}
	}
}
