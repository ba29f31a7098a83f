// Package record implements the recorder/replayer (component C9, spec
// §4.11): per-node zero-copy recordings indexed by a session-level
// SchedulerRecording, plus replay nodes that source their outputs from a
// prior recording instead of live computation.
package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"horus/pkg/record/zerocopy"
)

// Snapshot is one tick's recorded inputs and outputs for a single node
// (spec §3 DATA MODEL).
type Snapshot struct {
	Tick        uint64
	TimestampUS int64
	Inputs      map[string][]byte
	Outputs     map[string][]byte
}

// NodeRecording is the in-memory reconstruction of one node's recorded
// history, built by reading a .horus file in file order and sorting the
// snapshots by tick.
type NodeRecording struct {
	Name      string
	NodeID    uint64
	FirstTick uint64
	LastTick  uint64
	Snapshots []Snapshot
}

// SchedulerRecording indexes every node recording in a session.
type SchedulerRecording struct {
	SessionName string            `json:"sessionName"`
	SchedulerID string            `json:"schedulerId"`
	NodePaths   map[string]string `json:"nodePaths"` // node name -> relative .horus path
	TotalTicks  uint64            `json:"totalTicks"`
}

const metadataFileName = "metadata.json"

// Recorder appends a single node's per-tick snapshots to a mmapped
// zero-copy file. Safe for the driver thread only — spec §5 "Recording
// mmap: written only from the driver thread per node".
type Recorder struct {
	mu sync.Mutex

	name   string
	nodeID uint64
	path   string

	writer *zerocopy.Writer
	intern *zerocopy.InternTable

	firstTick uint64
	lastTick  uint64
	haveFirst bool
	finalized bool
}

// DefaultCapacityBytes bounds a per-node recording file by default; large
// enough for a long session of small messages without a huge preallocation.
const DefaultCapacityBytes = 64 * 1024 * 1024

// NewRecorder creates (truncating) the on-disk <name>@<id>.horus file for
// a node inside dir.
func NewRecorder(dir, name string, nodeID uint64, capacityBytes int) (*Recorder, error) {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}

	fileName := fmt.Sprintf("%s@%d.horus", name, nodeID)
	path := filepath.Join(dir, fileName)

	writer, err := zerocopy.Create(path, capacityBytes)
	if err != nil {
		return nil, fmt.Errorf("create recorder for %s: %w", name, err)
	}

	return &Recorder{
		name:   name,
		nodeID: nodeID,
		path:   fileName,
		writer: writer,
		intern: zerocopy.NewInternTable(),
	}, nil
}

// RecordTick appends one tick's inputs and outputs. Implements the
// node.Recorder interface consumed by pkg/node.RegisteredNode.
func (r *Recorder) RecordTick(tick uint64, inputs, outputs map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return zerocopy.ErrAlreadyFinalized
	}

	if !r.haveFirst {
		r.firstTick = tick
		r.haveFirst = true
	}

	if tick < r.lastTick && r.lastTick != 0 {
		return fmt.Errorf("record tick %d out of order after %d", tick, r.lastTick)
	}

	r.lastTick = tick

	for topic, data := range inputs {
		id := r.intern.Intern(topic)
		if err := r.writer.Append(tick, id, zerocopy.EntryInput, data); err != nil {
			return fmt.Errorf("record input %s/%s: %w", r.name, topic, err)
		}
	}

	for topic, data := range outputs {
		id := r.intern.Intern(topic)
		if err := r.writer.Append(tick, id, zerocopy.EntryOutput, data); err != nil {
			return fmt.Errorf("record output %s/%s: %w", r.name, topic, err)
		}
	}

	return nil
}

// Finalize flushes the recording to disk and returns its relative path
// (for inclusion in the session's SchedulerRecording). The intern table
// needed to decode it later is written to the .meta.json sidecar.
func (r *Recorder) Finalize(dir string) (relPath string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return r.path, zerocopy.ErrAlreadyFinalized
	}

	index, header, err := r.writer.Finalize()
	if err != nil {
		return "", fmt.Errorf("finalize recorder for %s: %w", r.name, err)
	}

	r.finalized = true

	indexPath := filepath.Join(dir, r.path+".idx")
	if err := zerocopy.WriteIndexFile(indexPath, index); err != nil {
		return "", fmt.Errorf("write index for %s: %w", r.name, err)
	}

	meta := zerocopy.Metadata{
		SessionID:      r.path,
		CreatedAtUnix:  time.Now().Unix(),
		FinalizedAt:    time.Now().Unix(),
		TotalEntries:   header.TotalEntries,
		TotalDataBytes: header.TotalDataBytes,
		Finalized:      true,
		InternTable:    r.intern.AsMap(),
	}

	encoded, err := zerocopy.EncodeMetadata(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata for %s: %w", r.name, err)
	}

	metaPath := filepath.Join(dir, r.path+".meta.json")
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write metadata for %s: %w", r.name, err)
	}

	return r.path, nil
}

// Session coordinates per-node recorders under a single SchedulerRecording.
type Session struct {
	mu sync.Mutex

	dir         string
	name        string
	schedulerID string

	recorders map[string]*Recorder
	paths     map[string]string
	totalTick uint64
}

// NewSession creates (or reuses) the session directory and prepares a new
// scheduler-level recording.
func NewSession(outputDir, sessionName string) (*Session, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	return &Session{
		dir:         outputDir,
		name:        sessionName,
		schedulerID: uuid.NewString(),
		recorders:   make(map[string]*Recorder),
		paths:       make(map[string]string),
	}, nil
}

// RecorderFor returns (creating if needed) the Recorder for a node.
func (s *Session) RecorderFor(name string, nodeID uint64) (*Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.recorders[name]; ok {
		return r, nil
	}

	r, err := NewRecorder(s.dir, name, nodeID, 0)
	if err != nil {
		return nil, err
	}

	s.recorders[name] = r

	return r, nil
}

// ObserveTick updates the session's high-water tick mark.
func (s *Session) ObserveTick(tick uint64) {
	s.mu.Lock()
	if tick > s.totalTick {
		s.totalTick = tick
	}
	s.mu.Unlock()
}

// Finalize finalizes every node recorder and writes the session-level
// SchedulerRecording metadata file.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error

	for name, r := range s.recorders {
		relPath, err := r.Finalize(s.dir)
		if err != nil && !errors.Is(err, zerocopy.ErrAlreadyFinalized) {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		s.paths[name] = relPath
	}

	rec := SchedulerRecording{
		SessionName: s.name,
		SchedulerID: s.schedulerID,
		NodePaths:   s.paths,
		TotalTicks:  s.totalTick,
	}

	data, err := jsonMarshalIndent(rec)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}

		return firstErr
	}

	if err := os.WriteFile(filepath.Join(s.dir, metadataFileName), data, 0o644); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("write session metadata: %w", err)
		}
	}

	return firstErr
}

// LoadSchedulerRecording reads a session directory's metadata.json.
func LoadSchedulerRecording(dir string) (SchedulerRecording, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return SchedulerRecording{}, fmt.Errorf("read session metadata: %w", err)
	}

	var rec SchedulerRecording

	if err := jsonUnmarshal(data, &rec); err != nil {
		return SchedulerRecording{}, fmt.Errorf("decode session metadata: %w", err)
	}

	return rec, nil
}

// LoadNodeRecording reconstructs a NodeRecording by reading a node's
// .horus file and its metadata sidecar (for the intern table) back from
// disk (spec §8 round-trip law).
func LoadNodeRecording(dir, nodeName, relPath string) (NodeRecording, error) {
	reader, err := zerocopy.Open(filepath.Join(dir, relPath))
	if err != nil {
		return NodeRecording{}, fmt.Errorf("open node recording %s: %w", relPath, err)
	}
	defer reader.Close()

	metaData, err := os.ReadFile(filepath.Join(dir, relPath+".meta.json"))
	if err != nil {
		return NodeRecording{}, fmt.Errorf("read node recording metadata %s: %w", relPath, err)
	}

	meta, err := zerocopy.DecodeMetadata(metaData)
	if err != nil {
		return NodeRecording{}, fmt.Errorf("decode node recording metadata %s: %w", relPath, err)
	}

	intern := zerocopy.LoadInternTable(meta.InternTable)

	byTick := make(map[uint64]*Snapshot)

	var ticks []uint64

	err = reader.Iterate(func(eh zerocopy.EntryHeader, raw []byte) error {
		snap, ok := byTick[eh.Tick]
		if !ok {
			snap = &Snapshot{Tick: eh.Tick, TimestampUS: int64(eh.TSNanos / 1000), Inputs: map[string][]byte{}, Outputs: map[string][]byte{}}
			byTick[eh.Tick] = snap
			ticks = append(ticks, eh.Tick)
		}

		topic, _ := intern.Name(eh.TopicID)

		switch eh.Type {
		case zerocopy.EntryInput:
			snap.Inputs[topic] = raw
		case zerocopy.EntryOutput:
			snap.Outputs[topic] = raw
		}

		return nil
	})
	if err != nil {
		return NodeRecording{}, fmt.Errorf("iterate node recording %s: %w", relPath, err)
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	snapshots := make([]Snapshot, 0, len(ticks))
	for _, t := range ticks {
		snapshots = append(snapshots, *byTick[t])
	}

	var first, last uint64
	if len(ticks) > 0 {
		first, last = ticks[0], ticks[len(ticks)-1]
	}

	return NodeRecording{
		Name:      nodeName,
		FirstTick: first,
		LastTick:  last,
		Snapshots: snapshots,
	}, nil
}
