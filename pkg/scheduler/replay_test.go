package scheduler

import (
	"context"
	"testing"

	"horus/pkg/record"
)

func writeRecording(t *testing.T, dir, node string, ticks int) {
	t.Helper()

	sess, err := record.NewSession(dir, "replay-session")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	rec, err := sess.RecorderFor(node, 1)
	if err != nil {
		t.Fatalf("recorder for: %v", err)
	}

	for tick := 0; tick < ticks; tick++ {
		in := map[string][]byte{"in": []byte("x")}
		out := map[string][]byte{"out": []byte{byte(tick)}}

		if err := rec.RecordTick(uint64(tick), in, out); err != nil {
			t.Fatalf("record tick %d: %v", tick, err)
		}

		sess.ObserveTick(uint64(tick))
	}

	if err := sess.Finalize(); err != nil {
		t.Fatalf("finalize session: %v", err)
	}
}

func TestReplayFromLoadsRecordedNodesAndOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRecording(t, dir, "nodeA", 3)

	s := New("replay-test")

	if err := s.ReplayFrom(dir); err != nil {
		t.Fatalf("replay from: %v", err)
	}

	if !s.replayMode {
		t.Fatalf("expected replay mode to be enabled")
	}

	rn, ok := s.byName["nodeA"]
	if !ok {
		t.Fatalf("expected nodeA to be registered from the recording")
	}
	if !rn.IsReplay {
		t.Fatalf("expected nodeA to be marked as a replay node")
	}

	replayNode, ok := rn.Node.(*record.ReplayNode)
	if !ok {
		t.Fatalf("expected a *record.ReplayNode, got %T", rn.Node)
	}

	outputs, err := replayNode.OutputsAtTick(1)
	if err != nil {
		t.Fatalf("outputs at tick 1: %v", err)
	}

	got, ok := outputs["out"]
	if !ok || len(got) != 1 || got[0] != byte(1) {
		t.Fatalf("expected recorded output byte 1 at tick 1, got %v (ok=%v)", got, ok)
	}

	if _, err := replayNode.OutputsAtTick(99); err == nil {
		t.Fatalf("expected an error for a tick never recorded")
	}
}

func TestTickReplayAdvancesNodeMetricsWithoutPanicking(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRecording(t, dir, "nodeA", 2)

	s := New("replay-test")

	if err := s.ReplayFrom(dir); err != nil {
		t.Fatalf("replay from: %v", err)
	}

	ctx := context.Background()
	s.currentTick = 0
	s.tickReplay(ctx)

	rn := s.byName["nodeA"]
	if rn.Context.Metrics().TickCount != 1 {
		t.Fatalf("expected one recorded tick, got %d", rn.Context.Metrics().TickCount)
	}

	s.currentTick = 50
	s.tickReplay(ctx)

	if rn.Context.Metrics().FailureCount != 1 {
		t.Fatalf("expected a tick failure for an out-of-range tick, got %d", rn.Context.Metrics().FailureCount)
	}
}

func TestStartAndStopAtTickSetters(t *testing.T) {
	t.Parallel()

	s := New("replay-test")
	s.StartAtTick(10)
	s.StopAtTick(20)

	if s.currentTick != 10 || s.startAtTick != 10 {
		t.Fatalf("expected currentTick and startAtTick to be 10, got %d/%d", s.currentTick, s.startAtTick)
	}
	if !s.haveStopAtTick || s.stopAtTick != 20 {
		t.Fatalf("expected stopAtTick 20, got %d (have=%v)", s.stopAtTick, s.haveStopAtTick)
	}
}

func TestWithReplaySpeedIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	s := New("replay-test")
	s.WithReplaySpeed(2.0)

	if s.replaySpeed != 2.0 {
		t.Fatalf("expected replaySpeed 2.0, got %f", s.replaySpeed)
	}

	s.WithReplaySpeed(-1)
	if s.replaySpeed != 2.0 {
		t.Fatalf("expected replaySpeed to remain 2.0 after a non-positive override, got %f", s.replaySpeed)
	}
}

func TestWithOverrideAppliesToReplayedNode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRecording(t, dir, "nodeA", 2)

	s := New("replay-test")
	s.WithOverride(record.Override{Node: "nodeA", Output: "out", Bytes: []byte{0xff}})

	if err := s.ReplayFrom(dir); err != nil {
		t.Fatalf("replay from: %v", err)
	}

	rn := s.byName["nodeA"]
	replayNode := rn.Node.(*record.ReplayNode)

	outputs, err := replayNode.OutputsAtTick(0)
	if err != nil {
		t.Fatalf("outputs at tick 0: %v", err)
	}

	if got := outputs["out"]; len(got) != 1 || got[0] != 0xff {
		t.Fatalf("expected override byte 0xff, got %v", got)
	}
}
