// Package control implements the scheduler's external-facing filesystem
// interfaces (spec §6): the live registry file, the heartbeats directory,
// and the control-command directory. None of this is on the tick's hot
// path; every write here happens from the driver thread at a slow,
// configured cadence.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gofrs/flock"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Topic mirrors node.Topic without importing pkg/node, to keep pkg/control
// free of a dependency on the node lifecycle types it only serializes.
type Topic struct {
	Name string `json:"topic"`
	Type string `json:"type"`
}

// NodeSnapshot is one node's entry in the registry file.
type NodeSnapshot struct {
	Name        string  `json:"name"`
	Priority    uint32  `json:"priority"`
	State       string  `json:"state"`
	Health      string  `json:"health"`
	ErrorCount  uint64  `json:"error_count"`
	TickCount   uint64  `json:"tick_count"`
	Publishers  []Topic `json:"publishers"`
	Subscribers []Topic `json:"subscribers"`
}

// OSKnobStatus reports one OS-integration knob's requested and actual
// outcome (spec §5 "graceful OS-knob degradation") so an external
// dashboard can show e.g. "requested RT priority 80, got SCHED_OTHER"
// without the run having failed.
type OSKnobStatus struct {
	Requested string `json:"requested"`
	Applied   bool   `json:"applied"`
	Detail    string `json:"detail,omitempty"`
}

// Registry is the per-process live metadata document (spec §6 "Registry
// file").
type Registry struct {
	PID           int                     `json:"pid"`
	SchedulerName string                  `json:"scheduler_name"`
	WorkingDir    string                  `json:"working_dir"`
	LastSnapshot  time.Time               `json:"last_snapshot"`
	OSKnobs       map[string]OSKnobStatus `json:"os_knobs,omitempty"`
	Nodes         []NodeSnapshot          `json:"nodes"`
}

// RegistryWriter writes the registry file atomically (temp + rename) and
// serializes writers across processes on one host with an advisory lock
// file (spec §9 open question: concurrent registry writers). A process
// that cannot acquire the lock still runs its scheduler; it simply does
// not participate in the shared registry file.
type RegistryWriter struct {
	path     string
	lockPath string
	lock     *flock.Flock
	locked   bool
}

// NewRegistryWriter opens (without yet locking) a writer for the registry
// file at path. Call TryLock before the first Write.
func NewRegistryWriter(path string) *RegistryWriter {
	return &RegistryWriter{
		path:     path,
		lockPath: path + ".lock",
		lock:     flock.New(path + ".lock"),
	}
}

// TryLock attempts to acquire the host-local advisory lock. It is not an
// error for the lock to be held by another process; callers should log
// and continue running without a registry writer (spec §7 "Config"-class
// error, non-fatal).
func (w *RegistryWriter) TryLock() (bool, error) {
	ok, err := w.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("control: acquire registry lock %q: %w", w.lockPath, err)
	}

	w.locked = ok

	return ok, nil
}

// Locked reports whether this writer currently holds the registry lock.
func (w *RegistryWriter) Locked() bool { return w.locked }

// Write atomically replaces the registry file's contents. Callers must
// hold the lock (Locked() == true); Write silently no-ops otherwise so a
// losing writer never corrupts the winner's file.
func (w *RegistryWriter) Write(reg Registry) error {
	if !w.locked {
		return nil
	}

	data, err := jsonAPI.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("control: marshal registry: %w", err)
	}

	dir := filepath.Dir(w.path)

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("control: create temp registry file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("control: write temp registry file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("control: close temp registry file: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("control: rename registry file into place: %w", err)
	}

	return nil
}

// Remove deletes the registry file on clean shutdown (spec §6 "removed on
// clean shutdown") and releases the host lock.
func (w *RegistryWriter) Remove() error {
	defer func() {
		if w.locked {
			_ = w.lock.Unlock()
			w.locked = false
		}
	}()

	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove registry file: %w", err)
	}

	return nil
}

// LoadRegistry reads and decodes a registry file, for external tools and
// tests.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("control: read registry file: %w", err)
	}

	var reg Registry

	if err := jsonAPI.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("control: decode registry file: %w", err)
	}

	return reg, nil
}
