package main

import (
	"strings"

	"horus/pkg/config"
)

const (
	defaultConfigPath  = "/etc/horus/config.yaml"
	defaultLogLevel    = "info"
	defaultWorkingDir  = "."
	defaultMetricsAddr = ":9110"

	modeDemo   = "demo"
	modeReplay = "replay"
)

// options holds every CLI flag, already trimmed and defaulted.
type options struct {
	configPath  string
	preset      string
	logLevel    string
	mode        string
	workingDir  string
	registry    string
	heartbeats  string
	commandDir  string
	checkpoint  string
	profile     string
	replayDir   string
	metricsAddr string
}

// loadConfig resolves a config.RuntimeConfig the same way config.Load does
// for every other caller: preset seeds defaults, an optional YAML file
// overrides them, and environment variables take final precedence.
func loadConfig(preset, path string) (config.RuntimeConfig, error) {
	return config.Load(preset, path)
}

func isValidMode(mode string) bool {
	switch mode {
	case modeDemo, modeReplay:
		return true
	default:
		return false
	}
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
