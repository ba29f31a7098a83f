package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"horus/pkg/node"
	"horus/pkg/record"
)

// EnableRecording turns on per-node recording for every node added so far,
// and for every node Add/AddRT/AddWithTier registers afterward (spec
// §4.11, §6 "recording.*"). Nodes excluded by recording.include_nodes /
// recording.exclude_nodes never get a Recorder attached.
func (s *Scheduler) EnableRecording(sessionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.recordingCfg.OutputDir
	if dir == "" {
		dir = s.workingDir
	}

	sess, err := record.NewSession(dir, sessionName)
	if err != nil {
		return fmt.Errorf("scheduler: enable recording: %w", err)
	}

	s.session = sess
	s.recordingOn = true

	for _, rn := range s.nodes {
		s.attachRecorderLocked(rn)
	}

	return nil
}

// attachRecorderLocked assigns rn a Recorder if recording is on and it
// passes the node filters. Caller must already hold s.mu.
func (s *Scheduler) attachRecorderLocked(rn *node.RegisteredNode) {
	if !s.recordingOn || s.session == nil || rn.IsReplay || rn.Recorder != nil {
		return
	}

	if !s.nodeRecordable(rn.Node.Name()) {
		return
	}

	rec, err := s.session.RecorderFor(rn.Node.Name(), uint64(rn.ID))
	if err != nil {
		s.logger.Warn("failed to attach recorder", zap.String("node", rn.Node.Name()), zap.Error(err))

		return
	}

	rn.Recorder = rec
}

// AddReplay registers a ReplayNode shim directly. Unlike Add, it never
// auto-detects RT timing and is always marked already-initialized, since a
// replay node has no user Init logic to run (spec §4.11 "Replay path").
func (s *Scheduler) AddReplay(rn *record.ReplayNode, priority uint32) error {
	registered, err := s.register(rn, priority, false, node.TierFast, true, node.RTSpec{})
	if err != nil {
		return err
	}

	registered.IsReplay = true
	registered.RT = node.RTSpec{}
	registered.Initialized = true
	registered.Context.SetState(node.StateRunning)

	return nil
}

// ReplayFrom loads every node recording named in dir's SchedulerRecording
// and registers a ReplayNode for each, then switches the scheduler into
// replay mode. Call WithOverride before ReplayFrom; overrides registered
// afterward do not apply to nodes already loaded.
func (s *Scheduler) ReplayFrom(dir string) error {
	sessRec, err := record.LoadSchedulerRecording(dir)
	if err != nil {
		return fmt.Errorf("scheduler: replay from %q: %w", dir, err)
	}

	s.mu.Lock()
	overrides := append([]record.Override(nil), s.replayOverrides...)
	s.mu.Unlock()

	for name, relPath := range sessRec.NodePaths {
		nodeRec, err := record.LoadNodeRecording(dir, name, relPath)
		if err != nil {
			return fmt.Errorf("scheduler: load recording for %s: %w", name, err)
		}

		replayNode := record.NewReplayNode(nodeRec, overrides)

		if err := s.AddReplay(replayNode, 0); err != nil {
			return fmt.Errorf("scheduler: register replay node %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.replayMode = true
	if s.startAtTick > 0 {
		s.currentTick = s.startAtTick
	}
	s.mu.Unlock()

	return nil
}

// StartAtTick seeds the scheduler's tick counter so replay resumes at a
// specific point in a recording instead of tick zero.
func (s *Scheduler) StartAtTick(tick uint64) *Scheduler {
	s.mu.Lock()
	s.startAtTick = tick
	s.currentTick = tick
	s.mu.Unlock()

	return s
}

// StopAtTick bounds replay to stop once currentTick reaches tick.
func (s *Scheduler) StopAtTick(tick uint64) *Scheduler {
	s.mu.Lock()
	s.stopAtTick = tick
	s.haveStopAtTick = true
	s.mu.Unlock()

	return s
}

// WithReplaySpeed scales the sleep duration between ticks (spec §4.1 step
// 9 "tick_period / replay_speed"). Values above 1 replay faster than
// recorded, below 1 slower. Non-positive values are ignored.
func (s *Scheduler) WithReplaySpeed(speed float64) *Scheduler {
	if speed > 0 {
		s.replaySpeed = speed
	}

	return s
}

// WithOverride registers a (node, output) override applied by every
// ReplayNode ReplayFrom subsequently loads (spec §4.11 scenario S6).
func (s *Scheduler) WithOverride(o record.Override) *Scheduler {
	s.mu.Lock()
	s.replayOverrides = append(s.replayOverrides, o)
	s.mu.Unlock()

	return s
}

// tickReplay (spec §4.11 "replay driver") pulls each replay node's
// recorded outputs for the current tick instead of calling Tick, since
// ReplayNode.Tick is a no-op stub.
func (s *Scheduler) tickReplay(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	tick := s.currentTick
	s.mu.Unlock()

	for _, rn := range nodes {
		if !rn.IsReplay {
			continue
		}

		replayNode, ok := rn.Node.(*record.ReplayNode)
		if !ok {
			continue
		}

		start := time.Now()
		_, err := replayNode.OutputsAtTick(tick)
		duration := time.Since(start)

		if err != nil {
			rn.Context.RecordTickFailure(duration)

			if rn.Logging {
				s.logger.Debug("replay tick: no recorded snapshot",
					zap.String("node", rn.Node.Name()), zap.Uint64("tick", tick), zap.Error(err))
			}

			continue
		}

		rn.Context.RecordTick(duration)

		if s.telemetry != nil {
			s.telemetry.ObserveNodeTick(rn.Node.Name(), true, duration)
		}

		if s.heartbeats != nil {
			_ = s.heartbeats.Beat(rn.Node.Name(), time.Now())
		}
	}
}
