package config

import "time"

// fileConfig mirrors RuntimeConfig with every field a pointer/slice so the
// YAML decoder can distinguish "absent from the file" (nil) from
// "explicitly set to the zero value".
type fileConfig struct {
	Execution  *string              `yaml:"execution_mode"`
	Realtime   realtimeFileConfig   `yaml:"realtime"`
	Timing     timingFileConfig     `yaml:"timing"`
	Resources  resourcesFileConfig  `yaml:"resources"`
	Fault      faultFileConfig      `yaml:"fault"`
	Monitoring monitoringFileConfig `yaml:"monitoring"`
	Recording  recordingFileConfig  `yaml:"recording"`
}

type realtimeFileConfig struct {
	SafetyMonitor      *bool          `yaml:"safety_monitor"`
	WCETEnforcement    *bool          `yaml:"wcet_enforcement"`
	DeadlineMonitoring *bool          `yaml:"deadline_monitoring"`
	MaxDeadlineMisses  *uint32        `yaml:"max_deadline_misses"`
	WatchdogEnabled    *bool          `yaml:"watchdog_enabled"`
	WatchdogTimeout    *time.Duration `yaml:"watchdog_timeout"`
	MemoryLocking      *bool          `yaml:"memory_locking"`
	SchedulingClass    *string        `yaml:"rt_scheduling_class"`
}

type timingFileConfig struct {
	GlobalRateHz *float64 `yaml:"global_rate_hz"`
	PerNodeRates *bool    `yaml:"per_node_rates"`
}

type resourcesFileConfig struct {
	CPUCores  *string `yaml:"cpu_cores"`
	NUMAAware *bool   `yaml:"numa_aware"`
}

type faultFileConfig struct {
	CircuitBreakerEnabled *bool          `yaml:"circuit_breaker_enabled"`
	MaxFailures           *uint32        `yaml:"max_failures"`
	RecoveryThreshold     *uint32        `yaml:"recovery_threshold"`
	CircuitTimeout        *time.Duration `yaml:"circuit_timeout"`
	CheckpointInterval    *time.Duration `yaml:"checkpoint_interval"`
	RedundancyFactor      *int           `yaml:"redundancy_factor"`
	RedundancyStrategy    *string        `yaml:"redundancy_strategy"`
}

type monitoringFileConfig struct {
	ProfilingEnabled  *bool          `yaml:"profiling_enabled"`
	BlackBoxEnabled   *bool          `yaml:"black_box_enabled"`
	BlackBoxSizeMB    *int           `yaml:"black_box_size_mb"`
	TelemetryEndpoint *string        `yaml:"telemetry_endpoint"`
	MetricsInterval   *time.Duration `yaml:"metrics_interval"`
}

type recordingFileConfig struct {
	Enabled      *bool          `yaml:"enabled"`
	SessionName  *string        `yaml:"session_name"`
	Compress     *bool          `yaml:"compress"`
	Interval     *time.Duration `yaml:"interval"`
	IncludeNodes []string       `yaml:"include_nodes"`
	ExcludeNodes []string       `yaml:"exclude_nodes"`
	OutputDir    *string        `yaml:"output_dir"`
}

func mergeFileConfig(dst *RuntimeConfig, src fileConfig) {
	if src.Execution != nil {
		dst.Execution = ExecutionMode(*src.Execution)
	}

	assignBool(&dst.Realtime.SafetyMonitor, src.Realtime.SafetyMonitor)
	assignBool(&dst.Realtime.WCETEnforcement, src.Realtime.WCETEnforcement)
	assignBool(&dst.Realtime.DeadlineMonitoring, src.Realtime.DeadlineMonitoring)
	assignUint32(&dst.Realtime.MaxDeadlineMisses, src.Realtime.MaxDeadlineMisses)
	assignBool(&dst.Realtime.WatchdogEnabled, src.Realtime.WatchdogEnabled)
	assignDuration(&dst.Realtime.WatchdogTimeout, src.Realtime.WatchdogTimeout)
	assignBool(&dst.Realtime.MemoryLocking, src.Realtime.MemoryLocking)
	assignString(&dst.Realtime.SchedulingClass, src.Realtime.SchedulingClass)

	assignFloat(&dst.Timing.GlobalRateHz, src.Timing.GlobalRateHz)
	assignBool(&dst.Timing.PerNodeRates, src.Timing.PerNodeRates)

	assignString(&dst.Resources.CPUCores, src.Resources.CPUCores)
	assignBool(&dst.Resources.NUMAAware, src.Resources.NUMAAware)

	assignBool(&dst.Fault.CircuitBreakerEnabled, src.Fault.CircuitBreakerEnabled)
	assignUint32(&dst.Fault.MaxFailures, src.Fault.MaxFailures)
	assignUint32(&dst.Fault.RecoveryThreshold, src.Fault.RecoveryThreshold)
	assignDuration(&dst.Fault.CircuitTimeout, src.Fault.CircuitTimeout)
	assignDuration(&dst.Fault.CheckpointInterval, src.Fault.CheckpointInterval)
	assignInt(&dst.Fault.RedundancyFactor, src.Fault.RedundancyFactor)

	if src.Fault.RedundancyStrategy != nil {
		dst.Fault.RedundancyStrategy = RedundancyStrategy(*src.Fault.RedundancyStrategy)
	}

	assignBool(&dst.Monitoring.ProfilingEnabled, src.Monitoring.ProfilingEnabled)
	assignBool(&dst.Monitoring.BlackBoxEnabled, src.Monitoring.BlackBoxEnabled)
	assignInt(&dst.Monitoring.BlackBoxSizeMB, src.Monitoring.BlackBoxSizeMB)
	assignString(&dst.Monitoring.TelemetryEndpoint, src.Monitoring.TelemetryEndpoint)
	assignDuration(&dst.Monitoring.MetricsInterval, src.Monitoring.MetricsInterval)

	assignBool(&dst.Recording.Enabled, src.Recording.Enabled)
	assignString(&dst.Recording.SessionName, src.Recording.SessionName)
	assignBool(&dst.Recording.Compress, src.Recording.Compress)
	assignDuration(&dst.Recording.Interval, src.Recording.Interval)
	assignString(&dst.Recording.OutputDir, src.Recording.OutputDir)

	if src.Recording.IncludeNodes != nil {
		dst.Recording.IncludeNodes = src.Recording.IncludeNodes
	}

	if src.Recording.ExcludeNodes != nil {
		dst.Recording.ExcludeNodes = src.Recording.ExcludeNodes
	}
}

func assignBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func assignUint32(dst *uint32, src *uint32) {
	if src != nil {
		*dst = *src
	}
}

func assignInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func assignFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func assignDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}

func assignString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
