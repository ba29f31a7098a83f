package safety

import (
	"testing"
	"time"
)

func TestRecordDeadlineMissLatchesEmergencyStop(t *testing.T) {
	t.Parallel()

	m := New(3)

	for i := 0; i < 3; i++ {
		_, latched := m.RecordDeadlineMiss("rt-node", 2*time.Millisecond, 1*time.Millisecond)
		if latched {
			t.Fatalf("did not expect latch on miss %d", i+1)
		}
	}

	if m.EmergencyStop() {
		t.Fatalf("expected emergency stop still clear after exactly max misses")
	}

	_, latched := m.RecordDeadlineMiss("rt-node", 2*time.Millisecond, 1*time.Millisecond)
	if !latched {
		t.Fatalf("expected latch on miss exceeding max")
	}

	if !m.EmergencyStop() {
		t.Fatalf("expected emergency stop latched")
	}
}

func TestRecordDeadlineMissIsMonotonic(t *testing.T) {
	t.Parallel()

	m := New(1)

	m.RecordDeadlineMiss("n", 2*time.Millisecond, 1*time.Millisecond)
	_, latched := m.RecordDeadlineMiss("n", 2*time.Millisecond, 1*time.Millisecond)
	if !latched {
		t.Fatalf("expected latch on second miss")
	}

	// A subsequent call must not report latched=true again, even though
	// the condition still holds; latching is a one-time edge.
	_, latchedAgain := m.RecordDeadlineMiss("n", 2*time.Millisecond, 1*time.Millisecond)
	if latchedAgain {
		t.Fatalf("expected monotonic latch to not re-fire")
	}

	if !m.EmergencyStop() {
		t.Fatalf("expected emergency stop to remain latched")
	}
}

func TestCheckWCETReportsOverrun(t *testing.T) {
	t.Parallel()

	m := New(0)

	if _, ok := m.CheckWCET("n", 90*time.Microsecond, 100*time.Microsecond); ok {
		t.Fatalf("expected no violation when within budget")
	}

	violation, ok := m.CheckWCET("n", 150*time.Microsecond, 100*time.Microsecond)
	if !ok {
		t.Fatalf("expected violation when exceeding budget")
	}

	if violation.Observed != 150*time.Microsecond || violation.Budget != 100*time.Microsecond {
		t.Fatalf("unexpected violation contents: %+v", violation)
	}
}

func TestCheckWatchdogsReportsExpired(t *testing.T) {
	t.Parallel()

	m := New(0)

	base := time.Unix(1000, 0)
	current := base
	m.WithClock(func() time.Time { return current })

	m.FeedWatchdog("a", 10*time.Millisecond)
	m.FeedWatchdog("b", 100*time.Millisecond)

	current = base.Add(50 * time.Millisecond)

	expired := m.CheckWatchdogs()
	if len(expired) != 1 || expired[0] != "a" {
		t.Fatalf("expected only node a expired, got %v", expired)
	}
}
