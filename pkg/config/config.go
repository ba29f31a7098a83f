// Package config loads the scheduler's configuration surface (spec §6):
// a named preset seeds defaults, a YAML file overrides them, and
// environment variables override the file. The split between a
// pointer-typed fileConfig and a plain RuntimeConfig lets the loader
// distinguish "not set" from "set to zero", mirroring the teacher's
// cmd/shaper/config.go.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecutionMode selects which C8 executor tier drives the default node
// population (spec §6 "execution.mode").
type ExecutionMode string

const (
	ExecutionSequential   ExecutionMode = "sequential"
	ExecutionParallel     ExecutionMode = "parallel"
	ExecutionAsyncIO      ExecutionMode = "asyncio"
	ExecutionJITOptimized ExecutionMode = "jit_optimized"
	ExecutionAutoAdaptive ExecutionMode = "auto_adaptive"
)

// RedundancyStrategy selects the vote rule the redundancy manager applies
// across replica outputs (spec §4.12).
type RedundancyStrategy string

const (
	RedundancyMajority  RedundancyStrategy = "majority"
	RedundancyUnanimous RedundancyStrategy = "unanimous"
)

// RealtimeConfig groups the §6 "realtime.*" options.
type RealtimeConfig struct {
	SafetyMonitor      bool
	WCETEnforcement    bool
	DeadlineMonitoring bool
	MaxDeadlineMisses  uint32
	WatchdogEnabled    bool
	WatchdogTimeout    time.Duration
	MemoryLocking      bool
	SchedulingClass    string
}

// TimingConfig groups the §6 "timing.*" options.
type TimingConfig struct {
	GlobalRateHz float64
	PerNodeRates bool
}

// ResourcesConfig groups the §6 "resources.*" options.
type ResourcesConfig struct {
	CPUCores  string
	NUMAAware bool
}

// FaultConfig groups the §6 "fault.*" options.
type FaultConfig struct {
	CircuitBreakerEnabled bool
	MaxFailures           uint32
	RecoveryThreshold     uint32
	CircuitTimeout        time.Duration
	CheckpointInterval    time.Duration
	RedundancyFactor      int
	RedundancyStrategy    RedundancyStrategy
}

// MonitoringConfig groups the §6 "monitoring.*" options.
type MonitoringConfig struct {
	ProfilingEnabled  bool
	BlackBoxEnabled   bool
	BlackBoxSizeMB    int
	TelemetryEndpoint string
	MetricsInterval   time.Duration
}

// RecordingConfig groups the §6 "recording.*" options.
type RecordingConfig struct {
	Enabled      bool
	SessionName  string
	Compress     bool
	Interval     time.Duration
	IncludeNodes []string
	ExcludeNodes []string
	OutputDir    string
}

// RuntimeConfig is the fully-resolved configuration consumed by
// cmd/horusd and pkg/scheduler.
type RuntimeConfig struct {
	Preset     string
	Execution  ExecutionMode
	Realtime   RealtimeConfig
	Timing     TimingConfig
	Resources  ResourcesConfig
	Fault      FaultConfig
	Monitoring MonitoringConfig
	Recording  RecordingConfig
}

// ErrNameCollision reports a configuration-class error surfaced before
// run() begins (spec §7 "Config — bad option... Surfaced to caller").
var ErrNameCollision = errors.New("config: node name collision")

// Load resolves a RuntimeConfig from an optional preset, an optional YAML
// file at path, and environment overrides, in that precedence order
// (lowest to highest). An empty path skips the file stage.
func Load(preset, path string) (RuntimeConfig, error) {
	cfg, err := seedPreset(preset)
	if err != nil {
		return RuntimeConfig{}, err
	}

	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return RuntimeConfig{}, fmt.Errorf("config: read file %q: %w", trimmed, err)
			}
		} else {
			var fileCfg fileConfig

			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return RuntimeConfig{}, fmt.Errorf("config: decode file %q: %w", trimmed, err)
			}

			mergeFileConfig(&cfg, fileCfg)
		}
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
