package config

import (
	"fmt"
	"time"
)

// seedPreset returns the baseline RuntimeConfig for a named preset (spec
// §6 "preset"). An empty name seeds the general-purpose default.
func seedPreset(name string) (RuntimeConfig, error) {
	switch name {
	case "", "default":
		return defaultPreset(), nil
	case "hard-rt":
		return hardRTPreset(), nil
	case "high-throughput":
		return highThroughputPreset(), nil
	case "safety-critical":
		return safetyCriticalPreset(), nil
	default:
		return RuntimeConfig{}, fmt.Errorf("config: unknown preset %q", name)
	}
}

func defaultPreset() RuntimeConfig {
	return RuntimeConfig{
		Preset:    "default",
		Execution: ExecutionSequential,
		Realtime: RealtimeConfig{
			SafetyMonitor:      true,
			DeadlineMonitoring: true,
			MaxDeadlineMisses:  10,
			WatchdogTimeout:    time.Second,
			SchedulingClass:    "other",
		},
		Timing: TimingConfig{
			GlobalRateHz: 100,
			PerNodeRates: true,
		},
		Resources: ResourcesConfig{},
		Fault: FaultConfig{
			CircuitBreakerEnabled: true,
			MaxFailures:           5,
			RecoveryThreshold:     2,
			CircuitTimeout:        30 * time.Second,
			RedundancyFactor:      1,
			RedundancyStrategy:    RedundancyMajority,
		},
		Monitoring: MonitoringConfig{
			ProfilingEnabled: true,
			MetricsInterval:  10 * time.Second,
		},
		Recording: RecordingConfig{},
	}
}

// hardRTPreset favors deterministic low-jitter execution: sequential
// ticking, tight deadline enforcement, memory locking and RT scheduling
// requested, no JIT (JIT recompilation is a latency spike the hard-RT
// preset cannot tolerate).
func hardRTPreset() RuntimeConfig {
	cfg := defaultPreset()
	cfg.Preset = "hard-rt"
	cfg.Execution = ExecutionSequential
	cfg.Realtime.WCETEnforcement = true
	cfg.Realtime.DeadlineMonitoring = true
	cfg.Realtime.MaxDeadlineMisses = 3
	cfg.Realtime.WatchdogEnabled = true
	cfg.Realtime.WatchdogTimeout = 50 * time.Millisecond
	cfg.Realtime.MemoryLocking = true
	cfg.Realtime.SchedulingClass = "fifo"
	cfg.Fault.CircuitBreakerEnabled = false
	cfg.Monitoring.ProfilingEnabled = false

	return cfg
}

// highThroughputPreset favors parallel/JIT execution and relaxed
// deadline accounting.
func highThroughputPreset() RuntimeConfig {
	cfg := defaultPreset()
	cfg.Preset = "high-throughput"
	cfg.Execution = ExecutionAutoAdaptive
	cfg.Realtime.DeadlineMonitoring = false
	cfg.Realtime.MaxDeadlineMisses = 1000
	cfg.Timing.GlobalRateHz = 1000
	cfg.Monitoring.ProfilingEnabled = true

	return cfg
}

// safetyCriticalPreset favors monitoring and redundancy over throughput:
// nodes run on the sequential executor with the safety monitor, WCET
// enforcement and watchdog on, checkpoints and black box logging are on,
// redundancy voting defaults to unanimous.
func safetyCriticalPreset() RuntimeConfig {
	cfg := defaultPreset()
	cfg.Preset = "safety-critical"
	cfg.Execution = ExecutionSequential
	cfg.Realtime.SafetyMonitor = true
	cfg.Realtime.WCETEnforcement = true
	cfg.Realtime.WatchdogEnabled = true
	cfg.Realtime.MaxDeadlineMisses = 1
	cfg.Fault.CheckpointInterval = 5 * time.Second
	cfg.Fault.RedundancyFactor = 3
	cfg.Fault.RedundancyStrategy = RedundancyUnanimous
	cfg.Monitoring.BlackBoxEnabled = true
	cfg.Monitoring.BlackBoxSizeMB = 64

	return cfg
}
