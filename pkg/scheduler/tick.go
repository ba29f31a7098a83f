package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"horus/pkg/adapters"
	"horus/pkg/breaker"
	"horus/pkg/control"
	"horus/pkg/depgraph"
	"horus/pkg/exec"
	"horus/pkg/node"
	"horus/pkg/profiler"
	"horus/pkg/tier"
)

// Run drives the tick loop (spec §4.1) until Stop is called, ctx is
// cancelled, or the safety monitor latches an emergency stop.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.runLoop(ctx, 0, false)
}

// RunFor drives the tick loop for at most dur, in addition to the normal
// stop conditions. Primarily for tests and bounded batch runs.
func (s *Scheduler) RunFor(ctx context.Context, dur time.Duration) error {
	return s.runLoop(ctx, dur, true)
}

// Tick manually drives a single pass over the named nodes, bypassing the
// loop entirely. Intended for step-by-step test drivers and tools.
func (s *Scheduler) Tick(ctx context.Context, names []string) []exec.Result {
	s.mu.Lock()
	targets := make([]*node.RegisteredNode, 0, len(names))
	for _, n := range names {
		if rn, ok := s.byName[n]; ok {
			targets = append(targets, rn)
		}
	}
	s.mu.Unlock()

	results := make([]exec.Result, 0, len(targets))
	for _, rn := range targets {
		if res, ran := s.tickDirect(ctx, rn, false); ran {
			results = append(results, res)
		}
	}

	return results
}

func (s *Scheduler) runLoop(ctx context.Context, dur time.Duration, bounded bool) error {
	s.mu.Lock()
	s.running = true
	s.stopRequested = false
	s.mu.Unlock()

	var deadline time.Time
	if bounded {
		deadline = time.Now().Add(dur)
	}

	if s.blackBox != nil {
		s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventSchedulerStart})
	}

	s.mu.Lock()
	if !s.osKnobsSet {
		s.osKnobs = applyOSKnobs(s.cfg)
		s.osKnobsSet = true

		for knob, status := range s.osKnobs {
			if !status.Applied {
				s.logger.Warn("OS knob not applied", zap.String("knob", knob),
					zap.String("requested", status.Requested), zap.String("detail", status.Detail))
			}
		}
	}
	s.mu.Unlock()

	defer s.shutdown(ctx)

	for {
		s.mu.Lock()
		stop := s.stopRequested
		s.mu.Unlock()

		if stop {
			return nil
		}

		if bounded && !time.Now().Before(deadline) {
			return nil
		}

		if s.replayMode && s.haveStopAtTick && s.currentTick >= s.stopAtTick {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.drainControlCommands(ctx)

		if s.learningOn && !s.learningDone {
			s.maybeCompleteLearning(ctx)
		}

		s.reinitPendingNodes(ctx)

		switch {
		case s.replayMode:
			s.tickReplay(ctx)
		case s.learningOn && !s.learningDone:
			s.tickLearning(ctx)
		default:
			s.ensureMigrated(ctx)
			s.tickOptimized(ctx)
		}

		if s.safetyPass(ctx) {
			return nil
		}

		s.maybeFlushRegistry(ctx)
		s.tickAdapters(ctx)

		if sleepFor := s.clock.SleepDuration(s.replaySpeed); sleepFor > 0 {
			time.Sleep(sleepFor)
		}

		s.mu.Lock()
		s.currentTick++
		s.mu.Unlock()
	}
}

// drainControlCommands applies every pending <name>.cmd directive (spec
// §4.4 "Control"). Unknown nodes and unparseable files are logged and
// skipped; a bad command file never stalls the loop.
func (s *Scheduler) drainControlCommands(ctx context.Context) {
	if s.commandDir == nil {
		return
	}

	cmds, errs := s.commandDir.Drain()

	for _, err := range errs {
		s.logger.Warn("control command error", zap.Error(err))
	}

	for _, cmd := range cmds {
		s.mu.Lock()
		rn, ok := s.byName[cmd.Node]
		s.mu.Unlock()

		if !ok {
			s.logger.Warn("control command for unknown node",
				zap.String("node", cmd.Node), zap.String("command", string(cmd.Command)))

			continue
		}

		switch cmd.Command {
		case control.CommandStop:
			rn.IsStopped = true
			rn.Context.SetState(node.StateError)
		case control.CommandRestart:
			rn.IsStopped = false
			rn.IsPaused = false
			rn.Initialized = false
			rn.Context.SetState(node.StateInitializing)
		case control.CommandPause:
			rn.IsPaused = true
			rn.Context.SetState(node.StatePaused)
		case control.CommandResume:
			rn.IsPaused = false
			rn.Context.SetState(node.StateRunning)
		}
	}
}

// reinitPendingNodes (spec §4.1 step 4) re-initializes every node that was
// just taken out of Stopped/Paused by a control command, or that a failed
// tick scheduled for restart.
func (s *Scheduler) reinitPendingNodes(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	for _, rn := range nodes {
		if rn.Initialized || rn.IsStopped || rn.IsReplay {
			continue
		}

		rn.Context.SetState(node.StateInitializing)

		if err := rn.Node.Init(ctx, rn.Context); err != nil {
			rn.Node.OnError(err)
			rn.Context.SetState(node.StateCrashed)
			rn.IsStopped = true

			if s.blackBox != nil {
				s.blackBox.Record(adapters.Event{
					At: time.Now(), Kind: adapters.EventNodeCrashed, Node: rn.Node.Name(), Detail: err.Error(),
				})
			}

			continue
		}

		rn.Context.SetState(node.StateRunning)
		rn.Initialized = true
	}
}

// maybeCompleteLearning (spec §4.1 step 3, §4.7) checks whether every node
// has collected enough profiler samples, and if so classifies nodes into
// tiers and migrates them to their matching executor.
func (s *Scheduler) maybeCompleteLearning(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	names := make([]string, 0, len(nodes))
	for _, rn := range nodes {
		if !rn.IsReplay {
			names = append(names, rn.Node.Name())
		}
	}

	if !s.profiler.LearningComplete(names) {
		return
	}

	for name, st := range s.profiler.AllStats() {
		s.logger.Info("learning stats",
			zap.String("node", name), zap.Uint64("count", st.Count),
			zap.Duration("mean", st.Mean), zap.Duration("p99", st.P99), zap.Uint64("failures", st.Failures))
	}

	s.classifyAndMigrate(ctx)

	s.mu.Lock()
	s.learningDone = true
	s.migrationDone = true
	s.mu.Unlock()
}

// ensureMigrated runs classification and tier migration exactly once for
// schedulers that skip the learning phase entirely (DisableLearning,
// WithProfile): without it, nodes pinned or profile-assigned to a
// non-default tier would never actually reach their executor.
func (s *Scheduler) ensureMigrated(ctx context.Context) {
	s.mu.Lock()
	done := s.migrationDone
	s.mu.Unlock()

	if done {
		return
	}

	s.classifyAndMigrate(ctx)

	s.mu.Lock()
	s.migrationDone = true
	s.mu.Unlock()
}

// classifyAndMigrate builds the dependency graph, classifies every
// non-pinned node into a tier (spec §4.7), and migrates every node —
// pinned or classified — to its tier's executor (spec §4.3, §4.8).
func (s *Scheduler) classifyAndMigrate(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	names := make([]string, 0, len(nodes))
	for _, rn := range nodes {
		if !rn.IsReplay {
			names = append(names, rn.Node.Name())
		}
	}

	graph := depgraph.Build(names, s.triples)

	hasDependents := make(map[string]bool, len(names))
	indeg := make(map[string]int, len(names))
	for _, e := range graph.Edges() {
		hasDependents[e.From] = true
		indeg[e.To]++
	}

	inputs := make([]tier.Input, 0, len(nodes))
	for _, rn := range nodes {
		name := rn.Node.Name()
		if rn.IsReplay || s.tierPinned[name] {
			continue
		}

		st, _ := s.profiler.Stats(name)
		inputs = append(inputs, tier.Input{
			Name:           name,
			Priority:       rn.Priority,
			Stats:          st,
			HasDependents:  hasDependents[name],
			DependencyFree: indeg[name] == 0,
		})
	}

	assignments := s.classifier.ClassifyAll(inputs)

	for t, count := range tier.Distribution(assignments) {
		s.logger.Info("tier distribution", zap.String("tier", t.String()), zap.Int("count", count))
	}

	s.mu.Lock()
	for name, t := range assignments {
		if rn, ok := s.byName[name]; ok {
			rn.Tier = t
		}
	}
	s.levels = graph.Levels()
	s.graphCyclic = graph.Cyclic()
	s.mu.Unlock()

	s.migrateClassifiedNodes(ctx)
}

// migrateClassifiedNodes (spec §4.3, §4.8) hands every node, pinned or
// classified, its tier's executor, and compiles the JIT fast path for
// UltraFast nodes.
func (s *Scheduler) migrateClassifiedNodes(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	var parallelNames []string

	for _, rn := range nodes {
		if rn.IsReplay {
			continue
		}

		switch rn.Tier {
		case node.TierUltraFast:
			rn.JIT.Eligible = rn.Node.SupportsJIT()

			if s.jitLayer.Enabled() {
				if compiled, ok := s.jitLayer.Compile(rn.Node); ok {
					rn.JIT.Eligible = true
					rn.JIT.Compiled = true
					rn.JIT.Compute = compiled.Fn
					rn.JIT.Factor = compiled.Factor
					rn.JIT.Offset = compiled.Offset
				}
			}
		case node.TierParallel:
			parallelNames = append(parallelNames, rn.Node.Name())
			s.migrateToExecutor(rn, node.TierParallel)
		case node.TierAsyncIO:
			s.migrateToExecutor(rn, node.TierAsyncIO)
		case node.TierBackground:
			s.migrateToExecutor(rn, node.TierBackground)
		case node.TierIsolated:
			s.migrateToExecutor(rn, node.TierIsolated)
		}
	}

	if len(parallelNames) == 0 {
		return
	}

	seen := make(map[string]bool, len(parallelNames))
	for _, n := range parallelNames {
		seen[n] = true
	}

	s.mu.Lock()
	var subLevels [][]string
	for _, level := range s.levels {
		var filtered []string
		for _, n := range level {
			if seen[n] {
				filtered = append(filtered, n)
			}
		}
		if len(filtered) > 0 {
			subLevels = append(subLevels, filtered)
		}
	}
	s.mu.Unlock()

	if len(subLevels) == 0 {
		subLevels = [][]string{parallelNames}
	}

	if s.parallelExec != nil {
		s.parallelExec.SetLevels(subLevels)
	}
}

func (s *Scheduler) migrateToExecutor(rn *node.RegisteredNode, t node.Tier) {
	var executor exec.Executor

	switch t {
	case node.TierParallel:
		if s.parallelExec == nil {
			s.parallelExec = exec.NewParallel(parseCPUCores(s.cfg.Resources.CPUCores))
		}
		executor = s.parallelExec
	case node.TierAsyncIO:
		if s.asyncExec == nil {
			s.asyncExec = exec.NewAsyncIO(64)
		}
		executor = s.asyncExec
	case node.TierBackground:
		if s.backgroundExec == nil {
			s.backgroundExec = exec.NewBackground(4, 64)
		}
		executor = s.backgroundExec
	case node.TierIsolated:
		if s.isolatedExec == nil {
			s.isolatedExec = exec.NewIsolated(exec.DefaultIsolatedConfig())
		}
		executor = s.isolatedExec
	default:
		return
	}

	if err := executor.SpawnNode(rn); err != nil {
		s.logger.Warn("failed to migrate node to executor",
			zap.String("node", rn.Node.Name()), zap.String("tier", t.String()), zap.Error(err))

		return
	}

	s.mu.Lock()
	s.migrated[rn.Node.Name()] = t
	s.mu.Unlock()
}

// tickLearning (spec §4.2) ticks every node sequentially in priority order
// so the profiler collects undistorted per-node timing samples.
func (s *Scheduler) tickLearning(ctx context.Context) {
	s.mu.Lock()
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	for _, rn := range nodes {
		if rn.IsReplay {
			continue
		}

		s.tickDirect(ctx, rn, true)
	}

	s.profiler.Tick()
}

// tickOptimized (spec §4.3) dispatches migrated nodes to their tier
// executors and ticks everything else directly, in dependency-level order.
func (s *Scheduler) tickOptimized(ctx context.Context) {
	if s.parallelExec != nil {
		for _, res := range s.parallelExec.TickAll(ctx) {
			s.applyMigratedResult(res)
		}
	}
	if s.asyncExec != nil {
		for _, res := range s.asyncExec.TickAll(ctx) {
			s.applyMigratedResult(res)
		}
	}
	if s.backgroundExec != nil {
		for _, res := range s.backgroundExec.TickAll(ctx) {
			s.applyMigratedResult(res)
		}
	}
	if s.isolatedExec != nil {
		for _, res := range s.isolatedExec.TickAll(ctx) {
			s.applyMigratedResult(res)
		}
	}

	s.mu.Lock()
	levels := s.levels
	cyclic := s.graphCyclic
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	tickFast := func(rn *node.RegisteredNode) {
		if rn.IsReplay {
			return
		}
		if _, migrated := s.migrated[rn.Node.Name()]; migrated {
			return
		}
		s.tickDirect(ctx, rn, false)
	}

	if cyclic || len(levels) == 0 {
		for _, rn := range nodes {
			tickFast(rn)
		}

		return
	}

	for _, level := range levels {
		for _, name := range level {
			if rn, ok := s.byName[name]; ok {
				tickFast(rn)
			}
		}
	}
}

// tickDirect runs the scheduler's own eligibility/breaker gating and ticks
// rn in-process, either through the JIT fast path or a normal SafeTick.
func (s *Scheduler) tickDirect(ctx context.Context, rn *node.RegisteredNode, learningPhase bool) (exec.Result, bool) {
	name := rn.Node.Name()

	if !rn.EligibleToTick() || !s.clock.Eligible(name) {
		return exec.Result{}, false
	}

	allowed, done := rn.Breaker.Allow()
	if !allowed {
		return exec.Result{}, false
	}

	if rn.RT.IsRT {
		timeout := s.cfg.Realtime.WatchdogTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		s.safetyMon.FeedWatchdog(name, timeout)
	}

	rn.Context.StartTick()

	start := time.Now()

	var err error
	if !learningPhase && rn.JIT.Compiled && rn.JIT.Compute != nil {
		count := rn.NextExecCount()
		rn.JIT.Compute(int64(count))

		if count%1000 == 0 {
			s.logger.Debug("jit fast path sample",
				zap.String("node", name), zap.Uint64("exec_count", count), zap.Duration("observed", time.Since(start)))
		}
	} else {
		err = exec.SafeTick(ctx, rn.Node, rn.Context)
	}

	duration := time.Since(start)
	done(err == nil)

	s.postTick(rn, err, duration, learningPhase)

	return exec.Result{Node: name, Success: err == nil, Err: err, Duration: duration}, true
}

// applyMigratedResult runs the same bookkeeping tickDirect would have run,
// for a tick that a tier executor already performed out-of-process.
func (s *Scheduler) applyMigratedResult(res exec.Result) {
	s.mu.Lock()
	rn, ok := s.byName[res.Node]
	s.mu.Unlock()

	if !ok {
		return
	}

	if _, done := rn.Breaker.Allow(); done != nil {
		done(res.Success)
	}

	s.postTick(rn, res.Err, res.Duration, false)
}

// postTick applies every effect a completed tick has beyond the bare
// success/failure result: RT checks, context bookkeeping, restart policy,
// telemetry, heartbeats, and recording.
func (s *Scheduler) postTick(rn *node.RegisteredNode, err error, duration time.Duration, learningPhase bool) {
	name := rn.Node.Name()

	if learningPhase {
		s.profiler.Record(profiler.Sample{Node: name, Duration: duration, Failed: err != nil, Timestamp: time.Now()})
	}

	if rn.RT.IsRT {
		if v, ok := s.safetyMon.CheckWCET(name, duration, rn.RT.WCET); ok {
			s.logger.Warn("wcet budget exceeded",
				zap.String("node", v.Node), zap.Duration("observed", v.Observed), zap.Duration("budget", v.Budget))
		}

		if misses, latched := s.safetyMon.RecordDeadlineMiss(name, duration, rn.RT.Deadline); latched {
			s.logger.Error("deadline misses exceeded max, emergency stop latched",
				zap.String("node", name), zap.Uint32("misses", misses))

			if s.blackBox != nil {
				s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventEmergencyStop, Node: name})
			}
			if s.telemetry != nil {
				s.telemetry.ObserveEmergencyStop()
			}
		}
	}

	if err == nil {
		rn.Context.RecordTick(duration)
	} else {
		rn.Context.RecordTickFailure(duration)
		rn.Node.OnError(err)

		cfgFlags := rn.Context.Config()
		switch {
		case cfgFlags.RestartOnFailure && rn.Context.RecordRestart():
			rn.Initialized = false
			rn.Context.SetState(node.StateInitializing)

			if s.blackBox != nil {
				s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventNodeRestarted, Node: name})
			}
		case cfgFlags.RestartOnFailure:
			// Restart attempts exhausted: crashed, but the circuit breaker
			// (not a permanent flag) decides when the node stops being ticked.
			rn.Context.SetState(node.StateCrashed)

			if s.blackBox != nil {
				s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventNodeCrashed, Node: name, Detail: err.Error()})
			}
		default:
			rn.Context.SetState(node.StateError)

			if s.blackBox != nil {
				s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventNodeCrashed, Node: name, Detail: err.Error()})
			}
		}
	}

	if s.telemetry != nil {
		s.telemetry.ObserveNodeTick(name, err == nil, duration)
		s.telemetry.SetNodeState(name, int(rn.Context.State()))
	}

	if s.heartbeats != nil {
		_ = s.heartbeats.Beat(name, time.Now())
	}

	if s.recordingOn && rn.Recorder != nil && !learningPhase && s.nodeRecordable(name) {
		_ = rn.Recorder.RecordTick(s.currentTick, nil, nil)
	}

	if s.session != nil {
		s.session.ObserveTick(s.currentTick)
	}

	if rn.Logging && !learningPhase {
		s.logger.Debug("node tick", zap.String("node", name), zap.Duration("duration", duration), zap.Bool("success", err == nil))
	}
}

// safetyPass (spec §4.1 step 6, §4.5) feeds watchdog checks and reports
// whether the safety monitor has latched an emergency stop.
func (s *Scheduler) safetyPass(ctx context.Context) bool {
	for _, name := range s.safetyMon.CheckWatchdogs() {
		s.logger.Warn("watchdog expired", zap.String("node", name))
	}

	if s.safetyMon.EmergencyStop() {
		s.logger.Error("emergency stop latched, exiting tick loop")

		if s.blackBox != nil {
			s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventEmergencyStop})
		}

		return true
	}

	return false
}

// maybeFlushRegistry (spec §4.1 step 7) writes the live registry snapshot,
// logs breaker anomalies, and logs dependency graph stats, at most once
// every registryFlushInterval.
func (s *Scheduler) maybeFlushRegistry(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	due := now.Sub(s.lastRegistryFlush) >= registryFlushInterval
	if due {
		s.lastRegistryFlush = now
	}
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	s.mu.Unlock()

	if !due {
		return
	}

	if s.registryWriter != nil && s.registryWriter.Locked() {
		s.mu.Lock()
		osKnobs := s.osKnobs
		s.mu.Unlock()

		reg := control.Registry{
			PID:           os.Getpid(),
			SchedulerName: s.name,
			WorkingDir:    s.workingDir,
			LastSnapshot:  now,
			OSKnobs:       osKnobs,
		}

		for _, rn := range nodes {
			metrics := rn.Context.Metrics()
			reg.Nodes = append(reg.Nodes, control.NodeSnapshot{
				Name:        rn.Node.Name(),
				Priority:    rn.Priority,
				State:       rn.Context.State().String(),
				Health:      rn.Breaker.State().String(),
				ErrorCount:  metrics.FailureCount,
				TickCount:   metrics.TickCount,
				Publishers:  toControlTopics(rn.Node.Publishers()),
				Subscribers: toControlTopics(rn.Node.Subscribers()),
			})
		}

		if err := s.registryWriter.Write(reg); err != nil {
			s.logger.Warn("registry snapshot failed", zap.Error(err))
		}
	}

	for _, rn := range nodes {
		if rn.Breaker.State() != breaker.StateClosed {
			s.logger.Warn("breaker anomaly", zap.String("node", rn.Node.Name()), zap.String("state", rn.Breaker.State().String()))
		}
	}

	names := make([]string, 0, len(nodes))
	for _, rn := range nodes {
		names = append(names, rn.Node.Name())
	}

	stats := depgraph.Build(names, s.triples).Stats()
	s.logger.Info("graph stats",
		zap.Int("nodes", stats.TotalNodes), zap.Int("edges", stats.TotalEdges), zap.Int("levels", stats.NumLevels))
}

// tickAdapters (spec §4.1 step 8) ticks the checkpoint manager and
// telemetry exporter; the black box has no periodic tick of its own, it
// only records discrete events as they happen.
func (s *Scheduler) tickAdapters(ctx context.Context) {
	if s.checkpointMgr != nil {
		now := time.Now()

		if s.checkpointMgr.Due(now) {
			s.mu.Lock()
			nodes := append([]*node.RegisteredNode(nil), s.nodes...)
			tick := s.currentTick
			s.mu.Unlock()

			cp := adapters.Checkpoint{TakenAt: now, TickCount: tick}
			for _, rn := range nodes {
				m := rn.Context.Metrics()
				cp.Nodes = append(cp.Nodes, adapters.NodeCheckpoint{
					Name: rn.Node.Name(), TickCount: m.TickCount, ErrorCount: m.FailureCount, Uptime: rn.Context.Uptime(),
				})
			}

			if _, err := s.checkpointMgr.Write(cp); err != nil {
				s.logger.Warn("checkpoint write failed", zap.Error(err))
			}
		}
	}

	if s.telemetry != nil {
		s.telemetry.ObserveTick()

		if s.telemetry.PushDue(time.Now()) {
			if err := s.telemetry.Push(); err != nil {
				s.logger.Warn("telemetry push failed", zap.Error(err))
			}
		}
	}
}

// nodeRecordable reports whether name passes the recording config's
// include/exclude node filters (spec §6 "Recording").
func (s *Scheduler) nodeRecordable(name string) bool {
	for _, n := range s.recordingCfg.ExcludeNodes {
		if n == name {
			return false
		}
	}

	if len(s.recordingCfg.IncludeNodes) == 0 {
		return true
	}

	for _, n := range s.recordingCfg.IncludeNodes {
		if n == name {
			return true
		}
	}

	return false
}

func toControlTopics(topics []node.Topic) []control.Topic {
	out := make([]control.Topic, 0, len(topics))
	for _, t := range topics {
		out = append(out, control.Topic{Name: t.Name, Type: t.Type})
	}

	return out
}

// shutdown (spec §4.1 "Shutdown path") drains every tier executor, shuts
// down every directly-owned node, flushes the black box and recording
// session, and removes the registry file.
func (s *Scheduler) shutdown(ctx context.Context) {
	var errs error

	s.mu.Lock()
	s.running = false
	nodes := append([]*node.RegisteredNode(nil), s.nodes...)
	migrated := make(map[string]node.Tier, len(s.migrated))
	for k, v := range s.migrated {
		migrated[k] = v
	}
	s.mu.Unlock()

	if s.parallelExec != nil {
		errs = multierr.Append(errs, s.parallelExec.ShutdownAll(ctx))
	}
	if s.asyncExec != nil {
		errs = multierr.Append(errs, s.asyncExec.ShutdownAll(ctx))
	}
	if s.backgroundExec != nil {
		errs = multierr.Append(errs, s.backgroundExec.ShutdownAll(ctx))
	}
	if s.isolatedExec != nil {
		errs = multierr.Append(errs, s.isolatedExec.ShutdownAll(ctx))
	}

	for _, rn := range nodes {
		if _, ok := migrated[rn.Node.Name()]; ok {
			continue
		}
		if !rn.Initialized || rn.IsReplay {
			continue
		}

		if err := rn.Node.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}

		rn.Context.RecordShutdown()
	}

	if s.blackBox != nil {
		s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventSchedulerStop})

		if s.cfg.Monitoring.BlackBoxEnabled && s.workingDir != "" {
			if err := s.blackBox.PersistTo(filepath.Join(s.workingDir, "blackbox.json")); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	if s.session != nil {
		if err := s.session.Finalize(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.registryWriter != nil {
		if err := s.registryWriter.Remove(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		s.logger.Error("shutdown completed with errors", zap.Error(errs))
	}
}
