package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"horus/internal/buildinfo"
	"horus/pkg/config"
	"horus/pkg/scheduler"
)

var errStubLoggerBoom = errors.New("logger failure")

func TestParseArgsDefaults(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if opts.configPath != defaultConfigPath {
		t.Fatalf("expected default config path, got %q", opts.configPath)
	}

	if opts.logLevel != defaultLogLevel {
		t.Fatalf("expected default log level, got %q", opts.logLevel)
	}

	if opts.mode != modeDemo {
		t.Fatalf("expected default mode, got %q", opts.mode)
	}

	if opts.metricsAddr != defaultMetricsAddr {
		t.Fatalf("expected default metrics addr, got %q", opts.metricsAddr)
	}
}

func TestParseArgsValidCustomizations(t *testing.T) {
	t.Parallel()

	args := []string{
		"--config", "./testdata/config.yaml",
		"--log-level", "debug",
		"--mode", "replay",
		"--replay-dir", "./testdata/recording",
	}

	opts, err := parseArgs(args)
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if opts.configPath != "./testdata/config.yaml" {
		t.Fatalf("unexpected config path: %q", opts.configPath)
	}

	if opts.logLevel != "debug" {
		t.Fatalf("unexpected log level: %q", opts.logLevel)
	}

	if opts.mode != modeReplay {
		t.Fatalf("unexpected mode: %q", opts.mode)
	}

	if opts.replayDir != "./testdata/recording" {
		t.Fatalf("unexpected replay dir: %q", opts.replayDir)
	}
}

func TestParseArgsRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := parseArgs([]string{"--mode", "observe"})
	if err == nil {
		t.Fatal("expected error for unsupported mode")
	}

	if !errors.Is(err, errUnsupportedMode) {
		t.Fatalf("expected errUnsupportedMode, got %v", err)
	}
}

func TestParseArgsReplayModeRequiresReplayDir(t *testing.T) {
	t.Parallel()

	_, err := parseArgs([]string{"--mode", "replay"})
	if err == nil {
		t.Fatal("expected error when replay mode is missing -replay-dir")
	}

	if !errors.Is(err, errMissingReplayDir) {
		t.Fatalf("expected errMissingReplayDir, got %v", err)
	}
}

func TestParseArgsTrimSpaces(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"--mode", "  DEMO ", "--log-level", " info "})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if opts.mode != modeDemo {
		t.Fatalf("expected trimmed lowercase mode, got %q", opts.mode)
	}

	if opts.logLevel != defaultLogLevel {
		t.Fatalf("expected trimmed log level, got %q", opts.logLevel)
	}
}

func TestParseArgsReturnsFlagError(t *testing.T) {
	t.Parallel()

	_, err := parseArgs([]string{"--unknown-flag"})
	if err == nil {
		t.Fatal("expected flag parsing error")
	}

	if !strings.Contains(err.Error(), "parse CLI arguments") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewLoggerRejectsInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := newLogger("not-a-level")
	if err == nil {
		t.Fatal("expected error when creating logger with invalid level")
	}

	if !errors.Is(err, errInvalidLogLevel) {
		t.Fatalf("expected errInvalidLogLevel, got %v", err)
	}
}

func TestNewLoggerAppliesLevel(t *testing.T) {
	t.Parallel()

	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer func() { _ = logger.Sync() }()

	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestRunSuccessfulPath(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	deps := defaultRunDeps()
	deps.currentBuildInfo = func() buildinfo.Info {
		return stubBuildInfo("test-version", "test-commit", "2026-07-01")
	}
	deps.newLogger = func(level string) (*zap.Logger, error) {
		if level != "debug" {
			t.Fatalf("expected log level \"debug\", got %q", level)
		}

		return logger, nil
	}
	deps.loadConfig = func(string, string) (config.RuntimeConfig, error) {
		return config.RuntimeConfig{}, nil
	}

	built := make(chan struct{}, 1)

	sched := scheduler.New("test")
	sched.DisableLearning()

	deps.newScheduler = func(config.RuntimeConfig, *zap.Logger, options) (*scheduler.Scheduler, error) {
		built <- struct{}{}

		return sched, nil
	}

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	go func() {
		<-built
		sched.Stop()
	}()

	exitCode := run(ctx, []string{"--log-level", "debug"}, deps, io.Discard)
	if exitCode != exitCodeSuccess {
		t.Fatalf("expected zero exit code, got %d", exitCode)
	}

	assertInfoLogEntry(t, observed.All(), "test-version", "test-commit", "2026-07-01")
}

func TestRunReturnsParseErrorExitCode(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	deps := defaultRunDeps()

	exitCode := run(t.Context(), []string{"--mode", "invalid"}, deps, &stderr)
	if exitCode != exitCodeParseError {
		t.Fatalf("expected exit code 2 for parse errors, got %d", exitCode)
	}

	if got := stderr.String(); !strings.Contains(got, "unsupported mode") {
		t.Fatalf("expected error message about unsupported mode, got %q", got)
	}
}

func TestRunReturnsLoggerConfigurationError(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	deps := defaultRunDeps()
	deps.newLogger = func(string) (*zap.Logger, error) {
		return nil, errStubLoggerBoom
	}

	exitCode := run(t.Context(), nil, deps, &stderr)
	if exitCode != exitCodeRuntimeError {
		t.Fatalf("expected exit code 1 when logger configuration fails, got %d", exitCode)
	}

	if got := stderr.String(); !strings.Contains(got, "failed to configure logger") {
		t.Fatalf("expected logger configuration failure message, got %q", got)
	}
}

func TestRunReturnsConfigLoadError(t *testing.T) {
	t.Parallel()

	deps := defaultRunDeps()
	deps.newLogger = func(string) (*zap.Logger, error) {
		return zap.NewNop(), nil
	}
	deps.loadConfig = func(string, string) (config.RuntimeConfig, error) {
		return config.RuntimeConfig{}, errors.New("boom")
	}

	exitCode := run(t.Context(), nil, deps, io.Discard)
	if exitCode != exitCodeRuntimeError {
		t.Fatalf("expected exit code 1 when config load fails, got %d", exitCode)
	}
}

func TestRunReturnsSchedulerConstructionError(t *testing.T) {
	t.Parallel()

	deps := defaultRunDeps()
	deps.newLogger = func(string) (*zap.Logger, error) {
		return zap.NewNop(), nil
	}
	deps.loadConfig = func(string, string) (config.RuntimeConfig, error) {
		return config.RuntimeConfig{}, nil
	}
	deps.newScheduler = func(config.RuntimeConfig, *zap.Logger, options) (*scheduler.Scheduler, error) {
		return nil, errors.New("construction failed")
	}

	exitCode := run(t.Context(), nil, deps, io.Discard)
	if exitCode != exitCodeRuntimeError {
		t.Fatalf("expected exit code 1 when scheduler construction fails, got %d", exitCode)
	}
}

func assertInfoLogEntry(t *testing.T, entries []observer.LoggedEntry, version, commit, date string) {
	t.Helper()

	var found *observer.LoggedEntry

	for i := range entries {
		if entries[i].Message == "starting horusd" {
			found = &entries[i]

			break
		}
	}

	if found == nil {
		t.Fatalf("expected startup log entry, got %+v", entries)
	}

	if got := fieldString(found.Context, "version"); got != version {
		t.Fatalf("expected version field %q, got %q", version, got)
	}

	if got := fieldString(found.Context, "commit"); got != commit {
		t.Fatalf("expected commit field %q, got %q", commit, got)
	}

	if got := fieldString(found.Context, "buildDate"); got != date {
		t.Fatalf("expected buildDate field %q, got %q", date, got)
	}
}

func fieldString(fields []zap.Field, key string) string {
	for _, field := range fields {
		if field.Key == key {
			return field.String
		}
	}

	return ""
}

func stubBuildInfo(version, commit, date string) buildinfo.Info {
	return buildinfo.Info{Version: version, GitCommit: commit, BuildDate: date}
}
