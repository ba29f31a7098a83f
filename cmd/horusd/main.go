// Package main wires the horusd daemon entrypoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"horus/internal/buildinfo"
	"horus/pkg/config"
	"horus/pkg/scheduler"

	_ "github.com/KimMachineGun/automemlimit/memlimit"
)

const (
	exitCodeSuccess      = 0
	exitCodeRuntimeError = 1
	exitCodeParseError   = 2
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "automaxprocs: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], defaultRunDeps(), os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

type runDeps struct {
	newLogger        func(level string) (*zap.Logger, error)
	loadConfig       func(preset, path string) (config.RuntimeConfig, error)
	currentBuildInfo func() buildinfo.Info
	newScheduler     func(cfg config.RuntimeConfig, logger *zap.Logger, opts options) (*scheduler.Scheduler, error)
	versionWriter    io.Writer
}

func defaultRunDeps() runDeps {
	return runDeps{
		newLogger:        newLogger,
		loadConfig:       loadConfig,
		currentBuildInfo: buildinfo.Current,
		newScheduler:     buildScheduler,
		versionWriter:    os.Stdout,
	}
}

func run(ctx context.Context, args []string, deps runDeps, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return exitCodeParseError
	}

	logger, err := deps.newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "failed to configure logger: %v\n", err)

		return exitCodeRuntimeError
	}

	defer func() {
		_ = logger.Sync()
	}()

	info := deps.currentBuildInfo()
	logger.Info("starting horusd",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("configPath", opts.configPath),
		zap.String("preset", opts.preset),
		zap.String("mode", opts.mode),
	)

	cfg, err := deps.loadConfig(opts.preset, opts.configPath)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))

		return exitCodeRuntimeError
	}

	sched, err := deps.newScheduler(cfg, logger, opts)
	if err != nil {
		logger.Error("failed to construct scheduler", zap.Error(err))

		return exitCodeRuntimeError
	}

	if telemetry := sched.Telemetry(); telemetry != nil && opts.metricsAddr != "" {
		go serveTelemetry(logger, telemetry.Handler(), opts.metricsAddr)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, stopping scheduler")
		sched.Stop()
	}()

	if err := sched.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler exited with an error", zap.Error(err))

		return exitCodeRuntimeError
	}

	logger.Info("horusd stopped")

	return exitCodeSuccess
}

func serveTelemetry(logger *zap.Logger, handler http.Handler, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("telemetry server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = defaultLogLevel
	}

	cfg := zap.NewProductionConfig()

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger, nil
}

func parseArgs(args []string) (options, error) {
	var opts options

	flagSet := flag.NewFlagSet("horusd", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to the runtime configuration YAML file")
	flagSet.StringVar(&opts.preset, "preset", "", "Named config preset (hard-rt, high-throughput, safety-critical)")
	flagSet.StringVar(&opts.logLevel, "log-level", defaultLogLevel, "Structured log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.mode, "mode", modeDemo, "Run mode: demo (built-in heartbeat nodes) or replay")
	flagSet.StringVar(&opts.workingDir, "working-dir", defaultWorkingDir, "Working directory for control surfaces and recordings")
	flagSet.StringVar(&opts.registry, "registry", "", "Path to the live registry snapshot file")
	flagSet.StringVar(&opts.heartbeats, "heartbeats", "", "Directory for per-node heartbeat files")
	flagSet.StringVar(&opts.commandDir, "commands", "", "Directory polled for <node>.cmd control files")
	flagSet.StringVar(&opts.checkpoint, "checkpoint-dir", "", "Directory for periodic checkpoint snapshots")
	flagSet.StringVar(&opts.profile, "profile", "", "Path to a precomputed tier-assignment profile file")
	flagSet.StringVar(&opts.replayDir, "replay-dir", "", "Recording directory to replay from (mode=replay)")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", defaultMetricsAddr, "Bind address for the Prometheus /metrics endpoint")

	if err := flagSet.Parse(args); err != nil {
		return options{}, fmt.Errorf("parse CLI arguments: %w", err)
	}

	trimAll(&opts.configPath, &opts.preset, &opts.logLevel, &opts.mode, &opts.workingDir,
		&opts.registry, &opts.heartbeats, &opts.commandDir, &opts.checkpoint, &opts.profile,
		&opts.replayDir, &opts.metricsAddr)

	opts.mode = strings.ToLower(opts.mode)

	if opts.mode == "" {
		opts.mode = modeDemo
	}

	if !isValidMode(opts.mode) {
		return options{}, fmt.Errorf("%w: %q (supported: %s, %s)", errUnsupportedMode, opts.mode, modeDemo, modeReplay)
	}

	if opts.mode == modeReplay && opts.replayDir == "" {
		return options{}, fmt.Errorf("%w: -replay-dir is required in replay mode", errMissingReplayDir)
	}

	if opts.workingDir == "" {
		opts.workingDir = defaultWorkingDir
	}

	return opts, nil
}

var (
	errInvalidLogLevel  = errors.New("invalid log level")
	errUnsupportedMode  = errors.New("unsupported mode provided")
	errMissingReplayDir = errors.New("missing replay directory")
)

// buildScheduler wires a Scheduler the way every horusd process does:
// config, control surfaces, checkpointing, then either a live demo node
// population or a loaded recording to replay.
func buildScheduler(cfg config.RuntimeConfig, logger *zap.Logger, opts options) (*scheduler.Scheduler, error) {
	sched := scheduler.New("horusd").WithLogger(logger).WithConfig(cfg).WithWorkingDir(opts.workingDir)

	if _, err := sched.WithControlSurfaces(opts.registry, opts.heartbeats, opts.commandDir); err != nil {
		return nil, err
	}

	if opts.checkpoint != "" {
		if _, err := sched.WithCheckpointing(opts.checkpoint, cfg.Fault.CheckpointInterval); err != nil {
			return nil, err
		}
	}

	if opts.profile != "" {
		if _, err := sched.WithProfile(opts.profile); err != nil {
			return nil, err
		}
	}

	switch opts.mode {
	case modeReplay:
		if err := sched.ReplayFrom(opts.replayDir); err != nil {
			return nil, err
		}
	default:
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("heartbeat_%d", i)
			if err := sched.Add(newHeartbeatNode(name, logger), uint32(i), false); err != nil {
				return nil, err
			}
		}
	}

	sched.LockTopology()

	return sched, nil
}
