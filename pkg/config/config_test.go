package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithNoPresetOrFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Execution != ExecutionSequential {
		t.Fatalf("expected sequential execution by default, got %v", cfg.Execution)
	}

	if !cfg.Realtime.SafetyMonitor {
		t.Fatalf("expected safety monitor enabled by default")
	}
}

func TestLoadUnknownPresetErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load("nonexistent", ""); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestHardRTPresetDisablesCircuitBreakerAndRequestsFIFO(t *testing.T) {
	t.Parallel()

	cfg, err := Load("hard-rt", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Fault.CircuitBreakerEnabled {
		t.Fatalf("expected circuit breaker disabled under hard-rt preset")
	}

	if cfg.Realtime.SchedulingClass != "fifo" {
		t.Fatalf("expected fifo scheduling class, got %q", cfg.Realtime.SchedulingClass)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "horus.yaml")

	contents := `
execution_mode: parallel
timing:
  global_rate_hz: 500
fault:
  max_failures: 9
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Execution != ExecutionParallel {
		t.Fatalf("expected parallel execution from file, got %v", cfg.Execution)
	}

	if cfg.Timing.GlobalRateHz != 500 {
		t.Fatalf("expected global rate 500 from file, got %v", cfg.Timing.GlobalRateHz)
	}

	if cfg.Fault.MaxFailures != 9 {
		t.Fatalf("expected max failures 9 from file, got %v", cfg.Fault.MaxFailures)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Execution != ExecutionSequential {
		t.Fatalf("expected defaults when file is missing, got %v", cfg.Execution)
	}
}

func TestEnvOverridesBeatDefaults(t *testing.T) {
	orig := lookupEnv

	t.Cleanup(func() { lookupEnv = orig })

	lookupEnv = func(key string) (string, bool) {
		if key == envGlobalRateHz {
			return "750", true
		}

		return "", false
	}

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Timing.GlobalRateHz != 750 {
		t.Fatalf("expected env override to win, got %v", cfg.Timing.GlobalRateHz)
	}
}

func TestSafetyCriticalPresetEnablesRedundancyAndBlackBox(t *testing.T) {
	t.Parallel()

	cfg, err := Load("safety-critical", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Fault.RedundancyStrategy != RedundancyUnanimous {
		t.Fatalf("expected unanimous redundancy, got %v", cfg.Fault.RedundancyStrategy)
	}

	if !cfg.Monitoring.BlackBoxEnabled {
		t.Fatalf("expected black box enabled")
	}

	if cfg.Fault.CheckpointInterval != 5*time.Second {
		t.Fatalf("expected 5s checkpoint interval, got %v", cfg.Fault.CheckpointInterval)
	}
}
