// Package scheduler implements the tick loop orchestrator (component C11,
// spec §4.1): it owns every RegisteredNode, drains external control
// commands, dispatches ticks through the learning or optimized path, and
// wires together every other package in this module — clock gate, circuit
// breaker, safety monitor, profiler, tier classifier, JIT layer,
// dependency graph, executors, recorder/replayer, and the C13 adapters.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"horus/pkg/adapters"
	"horus/pkg/breaker"
	"horus/pkg/clockgate"
	"horus/pkg/config"
	"horus/pkg/control"
	"horus/pkg/depgraph"
	"horus/pkg/exec"
	"horus/pkg/jit"
	"horus/pkg/node"
	"horus/pkg/profiler"
	"horus/pkg/record"
	"horus/pkg/safety"
	"horus/pkg/tier"
	"horus/pkg/topology"
)

// Sentinel errors surfaced by the builder/registration API (spec §7
// "Config — bad option, duplicate node name... surfaced to caller").
var (
	ErrDuplicateName  = errors.New("scheduler: duplicate node name")
	ErrTopologyLocked = errors.New("scheduler: topology is locked")
	ErrUnknownNode    = errors.New("scheduler: unknown node")
)

// registryFlushInterval is the "every 5s" cadence spec §4.1 step 7 names
// for the registry snapshot, breaker anomaly log, and graph stats log.
const registryFlushInterval = 5 * time.Second

// Scheduler orchestrates the tick loop described in spec §4.1. The zero
// value is not usable; construct with New.
type Scheduler struct {
	mu sync.Mutex

	name   string
	logger *zap.Logger
	cfg    config.RuntimeConfig

	clock      *clockgate.Gate
	safetyMon  *safety.Monitor
	profiler   *profiler.Profiler
	classifier *tier.Classifier
	jitLayer   *jit.Layer

	nodes          []*node.RegisteredNode
	byName         map[string]*node.RegisteredNode
	nextSeq        int
	tierPinned     map[string]bool
	preloadedTiers map[string]node.Tier
	topologyLock   bool
	deterministic  bool
	learningOn     bool
	learningDone   bool
	migrationDone  bool

	triples     []depgraph.Triple
	levels      [][]string
	graphCyclic bool

	parallelExec   *exec.Parallel
	asyncExec      *exec.AsyncIO
	backgroundExec *exec.Background
	isolatedExec   *exec.Isolated
	migrated       map[string]node.Tier

	session         *record.Session
	recordingOn     bool
	recordingCfg    config.RecordingConfig
	replayNodes     map[string]*record.ReplayNode
	replayOverrides []record.Override
	replayMode      bool
	startAtTick     uint64
	stopAtTick      uint64
	haveStopAtTick  bool
	replaySpeed     float64

	registryWriter *control.RegistryWriter
	heartbeats     *control.Heartbeats
	commandDir     *control.CommandDir
	workingDir     string

	checkpointMgr *adapters.CheckpointManager
	blackBox      *adapters.BlackBox
	telemetry     *adapters.Telemetry
	redundancy    *adapters.RedundancyManager

	osKnobs    map[string]control.OSKnobStatus
	osKnobsSet bool

	currentTick       uint64
	running           bool
	stopRequested     bool
	lastRegistryFlush time.Time
}

// New constructs a Scheduler with conservative defaults: a 100Hz global
// tick rate, safety monitor disabled (max misses 0), learning enabled, and
// no JIT layer.
func New(name string) *Scheduler {
	logger, _ := zap.NewProduction()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		name:           name,
		logger:         logger,
		clock:          clockgate.New(nil, 10*time.Millisecond),
		safetyMon:      safety.New(0),
		profiler:       profiler.New(profiler.DefaultMinSamples),
		classifier:     tier.New(tier.DefaultThresholds()),
		jitLayer:       jit.New(false),
		learningOn:     true,
		byName:         make(map[string]*node.RegisteredNode),
		tierPinned:     make(map[string]bool),
		migrated:       make(map[string]node.Tier),
		preloadedTiers: make(map[string]node.Tier),
		replaySpeed:    1.0,
		workingDir:     ".",
	}
}

// WithLogger overrides the zap logger used for every log line the
// scheduler emits. Not part of the distilled spec's API, but every
// package in this module takes its logger the same way cmd/horusd builds
// one, so the scheduler follows suit rather than printing to stdout.
func (s *Scheduler) WithLogger(logger *zap.Logger) *Scheduler {
	if logger != nil {
		s.logger = logger
	}

	return s
}

// WithConfig applies a resolved config.RuntimeConfig, rebuilding every
// subsystem it parameterizes. Call before adding nodes.
func (s *Scheduler) WithConfig(cfg config.RuntimeConfig) *Scheduler {
	s.cfg = cfg

	if cfg.Timing.GlobalRateHz > 0 {
		period := time.Duration(float64(time.Second) / cfg.Timing.GlobalRateHz)
		s.clock = clockgate.New(nil, period)
	}

	if cfg.Realtime.SafetyMonitor {
		s.safetyMon = safety.New(cfg.Realtime.MaxDeadlineMisses)
	} else {
		s.safetyMon = safety.New(0)
	}

	s.learningOn = cfg.Monitoring.ProfilingEnabled
	if !s.learningOn {
		s.learningDone = true
	}

	jitEnabled := cfg.Execution == config.ExecutionJITOptimized || cfg.Execution == config.ExecutionAutoAdaptive
	s.jitLayer = jit.New(jitEnabled)

	if cfg.Monitoring.BlackBoxEnabled {
		s.blackBox = adapters.NewBlackBox(cfg.Monitoring.BlackBoxSizeMB * 1000)
	}

	if cfg.Monitoring.MetricsInterval > 0 {
		s.telemetry = adapters.NewTelemetry(cfg.Monitoring.MetricsInterval)
		s.telemetry.ConfigurePush(cfg.Monitoring.TelemetryEndpoint, s.name)
	}

	if cfg.Fault.RedundancyFactor > 1 {
		strategy := adapters.VoteMajority
		if cfg.Fault.RedundancyStrategy == config.RedundancyUnanimous {
			strategy = adapters.VoteUnanimous
		}

		s.redundancy = adapters.NewRedundancyManager(adapters.RedundancyConfig{
			Factor:   cfg.Fault.RedundancyFactor,
			Strategy: strategy,
		})
	}

	s.recordingCfg = cfg.Recording

	return s
}

// WithCapacity preallocates node storage for n nodes.
func (s *Scheduler) WithCapacity(n int) *Scheduler {
	if n > 0 {
		s.nodes = make([]*node.RegisteredNode, 0, n)
	}

	return s
}

// EnableDeterminism turns on deterministic mode: Add/AddRT panic instead
// of erroring once the topology is locked, and replay never synthesizes
// output bytes (spec §3 invariants, §5 "Determinism mode").
func (s *Scheduler) EnableDeterminism() *Scheduler {
	s.deterministic = true

	return s
}

// EnableLearning turns the learning phase back on.
func (s *Scheduler) EnableLearning() *Scheduler {
	s.learningOn = true
	s.learningDone = false

	return s
}

// DisableLearning skips the learning phase entirely: nodes run the
// optimized path immediately using whatever tier they were added with
// (default Fast).
func (s *Scheduler) DisableLearning() *Scheduler {
	s.learningOn = false
	s.learningDone = true

	return s
}

// WithSafetyMonitor installs a safety monitor with the given emergency
// stop threshold.
func (s *Scheduler) WithSafetyMonitor(maxDeadlineMisses uint32) *Scheduler {
	s.safetyMon = safety.New(maxDeadlineMisses)

	return s
}

// WithWorkingDir sets the directory recorded in registry snapshots and
// used to resolve relative control/heartbeat/recording paths.
func (s *Scheduler) WithWorkingDir(dir string) *Scheduler {
	if dir != "" {
		s.workingDir = dir
	}

	return s
}

// WithControlSurfaces wires the registry writer, heartbeats directory and
// command directory (spec §6). Any argument may be empty to skip that
// surface.
func (s *Scheduler) WithControlSurfaces(registryPath, heartbeatDir, commandDir string) (*Scheduler, error) {
	if registryPath != "" {
		s.registryWriter = control.NewRegistryWriter(registryPath)

		ok, err := s.registryWriter.TryLock()
		if err != nil {
			return s, fmt.Errorf("scheduler: registry lock: %w", err)
		}

		if !ok {
			s.logger.Warn("registry lock held by another process; running without a shared registry file",
				zap.String("path", registryPath))
		}
	}

	if heartbeatDir != "" {
		hb, err := control.NewHeartbeats(heartbeatDir)
		if err != nil {
			return s, fmt.Errorf("scheduler: heartbeats: %w", err)
		}

		s.heartbeats = hb
	}

	if commandDir != "" {
		cd, err := control.NewCommandDir(commandDir)
		if err != nil {
			return s, fmt.Errorf("scheduler: command dir: %w", err)
		}

		s.commandDir = cd
	}

	return s, nil
}

// WithCheckpointing installs a checkpoint manager writing to dir at the
// given interval.
func (s *Scheduler) WithCheckpointing(dir string, interval time.Duration) (*Scheduler, error) {
	mgr, err := adapters.NewCheckpointManager(dir, interval)
	if err != nil {
		return s, fmt.Errorf("scheduler: checkpoint manager: %w", err)
	}

	s.checkpointMgr = mgr

	return s, nil
}

// Telemetry returns the Prometheus exporter WithConfig constructed (spec
// §6 "monitoring.metrics_interval_ms"), or nil if telemetry wasn't
// configured. Callers typically serve Telemetry().Handler() over HTTP.
func (s *Scheduler) Telemetry() *adapters.Telemetry {
	return s.telemetry
}

// looksRT is the heuristic substring match spec §4.1 describes for
// auto-detecting RT-ish node names: "robotics-adjacent" names imply hard
// deadlines even when the caller didn't call AddRT explicitly.
func looksRT(name string) bool {
	lower := strings.ToLower(name)

	for _, token := range []string{"rt_", "_rt", "realtime", "motor", "servo", "actuator", "control_loop", "brake"} {
		if strings.Contains(lower, token) {
			return true
		}
	}

	return false
}

// defaultWCET and defaultDeadline seed RT timing for auto-detected RT
// nodes that didn't go through AddRT with explicit values. Spec §9 leaves
// the exact figures to the implementation; these match the hard-rt
// preset's watchdog timeout order of magnitude.
const (
	defaultWCET     = 500 * time.Microsecond
	defaultDeadline = 1 * time.Millisecond
)

// checkAddAllowed enforces spec §4.1's locked-topology failure semantics:
// panics synchronously in deterministic mode, otherwise returns
// ErrTopologyLocked.
func (s *Scheduler) checkAddAllowed() error {
	if !s.topologyLock {
		return nil
	}

	if s.deterministic {
		panic(fmt.Errorf("%w: deterministic mode forbids append after lock_topology", ErrTopologyLocked))
	}

	return ErrTopologyLocked
}

func (s *Scheduler) register(n node.Node, priority uint32, logging bool, tierHint node.Tier, pinTier bool, rt node.RTSpec) (*node.RegisteredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAddAllowed(); err != nil {
		return nil, err
	}

	name := n.Name()
	if _, exists := s.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	if !rt.IsRT && looksRT(name) {
		rt = node.RTSpec{IsRT: true, WCET: defaultWCET, Deadline: defaultDeadline}
	}

	breakerCfg := breaker.DefaultConfig()
	if s.cfg.Fault.CircuitBreakerEnabled {
		breakerCfg = breaker.Config{
			MaxFailures:       s.cfg.Fault.MaxFailures,
			RecoveryThreshold: s.cfg.Fault.RecoveryThreshold,
			Timeout:           s.cfg.Fault.CircuitTimeout,
		}
	}

	rn := &node.RegisteredNode{
		ID:       node.DeriveID(name),
		Priority: priority,
		Logging:  logging,
		Node:     n,
		Context:  node.NewContext(name, node.ConfigFlags{RestartOnFailure: true, MaxRestartAttempts: 3}),
		RateHz:   0,
		Breaker:  breaker.New(name, breakerCfg),
		RT:       rt,
		Tier:     tierHint,
	}
	rn.Context.SetTopology(n.Publishers(), n.Subscribers())
	rn.SetInsertionSeq(s.nextSeq)
	s.nextSeq++

	for _, pub := range n.Publishers() {
		s.triples = append(s.triples, depgraph.Triple{Node: name, Topic: pub.Name, Type: pub.Type, Publisher: true})
	}

	for _, sub := range n.Subscribers() {
		s.triples = append(s.triples, depgraph.Triple{Node: name, Topic: sub.Name, Type: sub.Type, Publisher: false})
	}

	s.byName[name] = rn
	s.nodes = append(s.nodes, rn)
	sort.SliceStable(s.nodes, func(i, j int) bool { return s.nodes[i].Priority < s.nodes[j].Priority })

	if pinTier {
		s.tierPinned[name] = true
	} else if t, ok := s.preloadedTiers[name]; ok {
		rn.Tier = t
		s.tierPinned[name] = true
	}

	s.attachRecorderLocked(rn)

	return rn, nil
}

// Add registers a node at the given priority (lower = higher, spec §3).
func (s *Scheduler) Add(n node.Node, priority uint32, logging bool) error {
	_, err := s.register(n, priority, logging, node.TierFast, false, node.RTSpec{})

	return err
}

// AddRT registers an RT node with explicit WCET and deadline.
func (s *Scheduler) AddRT(n node.Node, priority uint32, wcet, deadline time.Duration) error {
	_, err := s.register(n, priority, false, node.TierFast, false, node.RTSpec{IsRT: true, WCET: wcet, Deadline: deadline})

	return err
}

// AddWithTier registers a node pinned to an explicit execution tier,
// exempting it from learning-phase reclassification (spec §4.7).
func (s *Scheduler) AddWithTier(n node.Node, priority uint32, t node.Tier) error {
	_, err := s.register(n, priority, false, t, true, node.RTSpec{})

	return err
}

// SetNodeRate configures a per-node rate override in Hz.
func (s *Scheduler) SetNodeRate(name string, hz float64) error {
	s.mu.Lock()
	rn, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}

	rn.RateHz = hz
	s.clock.SetNodeRate(name, hz)

	return nil
}

// SetNodeLogging toggles a node's logging flag.
func (s *Scheduler) SetNodeLogging(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rn, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}

	rn.Logging = enabled

	return nil
}

// ValidateTopology runs the C12 pub/sub validator in strict mode and
// returns human-readable error strings (empty = pass, spec §4.10).
func (s *Scheduler) ValidateTopology() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return topology.Validate(s.triples, true)
}

// LockTopology forbids further node registration (spec §3 invariant).
func (s *Scheduler) LockTopology() {
	s.mu.Lock()
	s.topologyLock = true
	s.mu.Unlock()

	if s.blackBox != nil {
		s.blackBox.Record(adapters.Event{At: time.Now(), Kind: adapters.EventTopologyLocked})
	}
}

// Stop requests that the running tick loop exit after its current
// iteration (spec §4.1 step 1 "SIGTERM / Ctrl-C flag").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
}

// Metrics is the snapshot returned by GetMetrics.
type Metrics struct {
	CurrentTick      uint64
	NodeCount        int
	LearningComplete bool
	EmergencyStop    bool
	GraphStats       depgraph.Stats
}

// GetMetrics returns a point-in-time snapshot of scheduler-wide counters.
func (s *Scheduler) GetMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var graphStats depgraph.Stats
	if len(s.nodes) > 0 {
		names := make([]string, 0, len(s.nodes))
		for _, rn := range s.nodes {
			names = append(names, rn.Node.Name())
		}

		graphStats = depgraph.Build(names, s.triples).Stats()
	}

	return Metrics{
		CurrentTick:      s.currentTick,
		NodeCount:        len(s.nodes),
		LearningComplete: s.learningDone,
		EmergencyStop:    s.safetyMon.EmergencyStop(),
		GraphStats:       graphStats,
	}
}

// NodeInfo is the per-node snapshot returned by GetNodeInfo.
type NodeInfo struct {
	Name         string
	Priority     uint32
	Tier         node.Tier
	State        node.State
	Metrics      node.Metrics
	BreakerState breaker.State
	IsRT         bool
	IsStopped    bool
	IsPaused     bool
}

// GetNodeInfo reports a single node's current lifecycle and metrics
// snapshot.
func (s *Scheduler) GetNodeInfo(name string) (NodeInfo, error) {
	s.mu.Lock()
	rn, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}

	return NodeInfo{
		Name:         name,
		Priority:     rn.Priority,
		Tier:         rn.Tier,
		State:        rn.Context.State(),
		Metrics:      rn.Context.Metrics(),
		BreakerState: rn.Breaker.State(),
		IsRT:         rn.RT.IsRT,
		IsStopped:    rn.IsStopped,
		IsPaused:     rn.IsPaused,
	}, nil
}

// parseCPUCores best-effort parses resources.cpu_cores (a count or a
// list like "0-3,7") into a worker count for the Parallel executor. An
// unparseable or empty value falls back to 0 (unbounded).
func parseCPUCores(spec string) int {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0
	}

	if n, err := strconv.Atoi(spec); err == nil && n > 0 {
		return n
	}

	total := 0

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			total++

			continue
		}

		total++
	}

	return total
}
