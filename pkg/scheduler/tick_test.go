package scheduler

import (
	"context"
	"testing"
	"time"

	"horus/pkg/breaker"
	"horus/pkg/node"
)

func TestTickSkipsUninitializedNode(t *testing.T) {
	t.Parallel()

	s := New("test")

	fn := newFakeNode("a")
	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	results := s.Tick(context.Background(), []string{"a"})
	if len(results) != 0 {
		t.Fatalf("expected no results for an uninitialized node, got %d", len(results))
	}
	if fn.tickCount() != 0 {
		t.Fatalf("expected Tick not to have been invoked")
	}
}

func TestTickRunsInitializedNode(t *testing.T) {
	t.Parallel()

	s := New("test")

	fn := newFakeNode("a")
	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.byName["a"].Initialized = true

	results := s.Tick(context.Background(), []string{"a"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success {
		t.Fatalf("expected success, got err %v", results[0].Err)
	}
	if fn.tickCount() != 1 {
		t.Fatalf("expected exactly one tick, got %d", fn.tickCount())
	}
}

func TestTickDirectRestartsOnFailureUnderMaxAttempts(t *testing.T) {
	t.Parallel()

	s := New("test")

	fn := newFakeNode("flaky")
	fn.failNextTicks(10, nil)

	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	rn := s.byName["flaky"]
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rn.Initialized = true

		if _, ran := s.tickDirect(ctx, rn, false); !ran {
			t.Fatalf("tick %d: expected to run", i)
		}

		if rn.IsStopped {
			t.Fatalf("tick %d: should still be within the restart budget", i)
		}

		if rn.Initialized {
			t.Fatalf("tick %d: expected Initialized cleared pending reinit", i)
		}
	}

	rn.Initialized = true

	if _, ran := s.tickDirect(ctx, rn, false); !ran {
		t.Fatalf("final tick: expected to run")
	}

	// Exceeding the restart budget crashes the node's context, but it must
	// stay eligible for ticking: the circuit breaker, not a permanent flag,
	// is what silences a node that keeps failing (spec §4.6).
	if rn.IsStopped {
		t.Fatalf("expected IsStopped to remain false; the breaker gates ticking, not this flag")
	}

	if rn.Context.State() != node.StateCrashed {
		t.Fatalf("expected StateCrashed, got %v", rn.Context.State())
	}
}

// TestTickDirectNoRestartOpensBreakerAfterMaxFailures reproduces the spec §8
// scenario S2: a node that fails every tick with restart_on_failure=false
// must still be invoked (and recorded as a failure) on every tick until the
// circuit breaker itself accumulates max_failures consecutive failures and
// opens; only then does tickDirect stop invoking it. Before the fix, the
// node's own IsStopped flag silenced it after the very first failure, so the
// breaker never saw more than one failure and never opened.
func TestTickDirectNoRestartOpensBreakerAfterMaxFailures(t *testing.T) {
	t.Parallel()

	s := New("test")

	fn := newFakeNode("flaky")
	fn.failNextTicks(100, nil)

	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	rn := s.byName["flaky"]
	rn.Context.SetConfig(node.ConfigFlags{RestartOnFailure: false})

	ctx := context.Background()
	maxFailures := breaker.DefaultConfig().MaxFailures

	for i := uint32(0); i < maxFailures; i++ {
		rn.Initialized = true

		if _, ran := s.tickDirect(ctx, rn, false); !ran {
			t.Fatalf("tick %d: expected node to be invoked while the breaker is closed", i)
		}

		if rn.IsStopped {
			t.Fatalf("tick %d: IsStopped must stay false; only the breaker silences this node", i)
		}
	}

	if rn.Breaker.State() != breaker.StateOpen {
		t.Fatalf("expected breaker open after %d consecutive failures, got %v", maxFailures, rn.Breaker.State())
	}

	ticksBefore := fn.tickCount()

	for i := 0; i < 5; i++ {
		rn.Initialized = true

		if _, ran := s.tickDirect(ctx, rn, false); ran {
			t.Fatalf("tick should have been denied by the open breaker")
		}
	}

	if got := fn.tickCount(); got != ticksBefore {
		t.Fatalf("expected no further invocations once the breaker opened, got %d additional ticks", got-ticksBefore)
	}
}

func TestReinitPendingNodesInitializesFreshNode(t *testing.T) {
	t.Parallel()

	s := New("test")

	fn := newFakeNode("a")
	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.reinitPendingNodes(context.Background())

	rn := s.byName["a"]
	if !rn.Initialized {
		t.Fatalf("expected node to be initialized")
	}
	if rn.Context.State() != node.StateRunning {
		t.Fatalf("expected StateRunning, got %v", rn.Context.State())
	}
	if fn.initCount() != 1 {
		t.Fatalf("expected exactly one Init call, got %d", fn.initCount())
	}
}

func TestSafetyPassLatchedEmergencyStopEndsRunLoop(t *testing.T) {
	t.Parallel()

	s := New("test")
	s.DisableLearning()

	if err := s.Add(newFakeNode("a"), 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.safetyMon.Latch()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not exit after emergency stop latch")
	}
}

func TestRunForMigratesPinnedTierNodeWithLearningDisabled(t *testing.T) {
	t.Parallel()

	s := New("test")
	s.DisableLearning()

	fn := newFakeNode("bg")
	if err := s.AddWithTier(fn, 0, node.TierBackground); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.RunFor(ctx, 120*time.Millisecond); err != nil {
		t.Fatalf("run for: %v", err)
	}

	if tier, ok := s.migrated["bg"]; !ok || tier != node.TierBackground {
		t.Fatalf("expected bg migrated to TierBackground, got %v (ok=%v)", tier, ok)
	}

	if s.backgroundExec == nil {
		t.Fatalf("expected a background executor to have been created")
	}
}

func TestRunForTicksDefaultTierNodeDirectly(t *testing.T) {
	t.Parallel()

	s := New("test")
	s.DisableLearning()

	fn := newFakeNode("a")
	if err := s.Add(fn, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.RunFor(ctx, 120*time.Millisecond); err != nil {
		t.Fatalf("run for: %v", err)
	}

	if fn.tickCount() == 0 {
		t.Fatalf("expected at least one tick")
	}
}
