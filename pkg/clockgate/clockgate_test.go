package clockgate

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestGateNodeRateLimitsEligibility(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := New(clock, time.Millisecond)
	gate.SetNodeRate("a", 10) // period = 100ms

	if !gate.Eligible("a") {
		t.Fatalf("expected first call eligible")
	}

	if gate.Eligible("a") {
		t.Fatalf("expected immediate second call to be gated")
	}

	clock.advance(50 * time.Millisecond)
	if gate.Eligible("a") {
		t.Fatalf("expected call before period elapses to be gated")
	}

	clock.advance(60 * time.Millisecond)
	if !gate.Eligible("a") {
		t.Fatalf("expected call after period elapses to be eligible")
	}
}

func TestGateNoOverrideAlwaysEligible(t *testing.T) {
	t.Parallel()

	gate := New(nil, time.Millisecond)
	for i := 0; i < 5; i++ {
		if !gate.Eligible("unrated") {
			t.Fatalf("expected node without override to always be eligible")
		}
	}
}

func TestGateSleepDurationAppliesReplaySpeed(t *testing.T) {
	t.Parallel()

	gate := New(nil, 100*time.Millisecond)

	if got := gate.SleepDuration(1.0); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %v", got)
	}

	if got := gate.SleepDuration(2.0); got != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %v", got)
	}

	if got := gate.SleepDuration(0); got != 100*time.Millisecond {
		t.Fatalf("expected non-positive speed to default to 1.0, got %v", got)
	}
}
