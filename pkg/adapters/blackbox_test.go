package adapters

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBlackBoxSnapshotPreservesOrderBeforeWrap(t *testing.T) {
	t.Parallel()

	b := NewBlackBox(4)

	b.Record(Event{At: time.Unix(1, 0), Kind: EventSchedulerStart})
	b.Record(Event{At: time.Unix(2, 0), Kind: EventNodeCrashed, Node: "a"})

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap))
	}

	if snap[0].Kind != EventSchedulerStart || snap[1].Kind != EventNodeCrashed {
		t.Fatalf("unexpected order: %+v", snap)
	}
}

func TestBlackBoxWrapsAtCapacity(t *testing.T) {
	t.Parallel()

	b := NewBlackBox(2)

	b.Record(Event{At: time.Unix(1, 0), Kind: EventSchedulerStart})
	b.Record(Event{At: time.Unix(2, 0), Kind: EventNodeCrashed})
	b.Record(Event{At: time.Unix(3, 0), Kind: EventEmergencyStop})

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected capacity-bounded 2 events, got %d", len(snap))
	}

	if snap[0].Kind != EventNodeCrashed || snap[1].Kind != EventEmergencyStop {
		t.Fatalf("expected oldest event evicted, got %+v", snap)
	}
}

func TestBlackBoxPersistTo(t *testing.T) {
	t.Parallel()

	b := NewBlackBox(8)
	b.Record(Event{At: time.Unix(1, 0), Kind: EventSchedulerStop, Detail: "clean shutdown"})

	path := filepath.Join(t.TempDir(), "blackbox.json")

	if err := b.PersistTo(path); err != nil {
		t.Fatalf("persist: %v", err)
	}
}
