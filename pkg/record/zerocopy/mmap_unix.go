//go:build unix

package zerocopy

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrBufferFull is returned by Writer.Append when the mmapped region has
// no room left for another entry (spec §4.11, §7 error taxonomy).
var ErrBufferFull = errors.New("zerocopy: buffer full")

// ErrAlreadyFinalized is returned by any Writer operation attempted after
// Finalize has run (spec §4.11, §7 error taxonomy).
var ErrAlreadyFinalized = errors.New("zerocopy: already finalized")

// Writer appends entries to a mmapped, preallocated data file.
type Writer struct {
	mu sync.Mutex

	file      *os.File
	data      []byte
	capacity  int
	writePos  int
	entries   int
	finalized bool
	created   time.Time

	index []IndexEntry
}

// Create preallocates a data file of the given capacity (including the
// header) and mmaps it for writing.
func Create(path string, capacity int) (*Writer, error) {
	if capacity < HeaderSize {
		capacity = HeaderSize + 64*1024
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}

	if err := file.Truncate(int64(capacity)); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("truncate data file: %w", err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("mmap data file: %w", err)
	}

	created := time.Now()

	w := &Writer{
		file:     file,
		data:     data,
		capacity: capacity,
		writePos: HeaderSize,
		created:  created,
	}

	w.writeHeaderLocked()

	return w, nil
}

func (w *Writer) writeHeaderLocked() {
	h := Header{
		Version:        CurrentVersion,
		CreatedTSNanos: uint64(w.created.UnixNano()),
		TotalEntries:   uint64(w.entries),
		TotalDataBytes: uint64(w.writePos - HeaderSize),
	}

	if w.finalized {
		h.Flags |= FlagFinalized
	}

	copy(w.data[0:HeaderSize], EncodeHeader(h))
}

// Append writes one entry. Returns ErrBufferFull if it would not fit in
// the remaining mmapped capacity, and ErrAlreadyFinalized after Finalize.
func (w *Writer) Append(tick uint64, topicID uint32, entryType EntryType, raw []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrAlreadyFinalized
	}

	encoded := EncodeEntry(EntryHeader{
		Tick:    tick,
		TopicID: topicID,
		Type:    entryType,
		TSNanos: uint64(time.Now().UnixNano()),
	}, raw)

	if w.writePos+len(encoded) > w.capacity {
		return ErrBufferFull
	}

	offset := w.writePos
	copy(w.data[w.writePos:w.writePos+len(encoded)], encoded)
	w.writePos += len(encoded)
	w.entries++

	w.index = append(w.index, IndexEntry{
		Tick:       tick,
		DataOffset: uint64(offset),
		TotalSize:  uint32(len(encoded)),
		EntryCount: 1,
	})

	w.writeHeaderLocked()

	return nil
}

// Finalize flips the finalized flag, truncates the backing file to the
// actual write position, and returns the index entries plus total stats
// so the caller can persist the index file and metadata sidecar.
// Finalize is idempotent-in-effect: subsequent calls return
// ErrAlreadyFinalized without altering on-disk bytes (spec §8 invariant 7).
func (w *Writer) Finalize() ([]IndexEntry, Header, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil, Header{}, ErrAlreadyFinalized
	}

	w.finalized = true
	w.writeHeaderLocked()

	if err := unix.Msync(w.data, unix.MS_SYNC); err != nil {
		return nil, Header{}, fmt.Errorf("msync: %w", err)
	}

	finalSize := w.writePos

	if err := unix.Munmap(w.data); err != nil {
		return nil, Header{}, fmt.Errorf("munmap: %w", err)
	}

	w.data = nil

	if err := w.file.Truncate(int64(finalSize)); err != nil {
		return nil, Header{}, fmt.Errorf("truncate to final size: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return nil, Header{}, fmt.Errorf("close data file: %w", err)
	}

	return w.index, Header{
		Version:        CurrentVersion,
		Flags:          FlagFinalized,
		CreatedTSNanos: uint64(w.created.UnixNano()),
		TotalEntries:   uint64(w.entries),
		TotalDataBytes: uint64(finalSize - HeaderSize),
	}, nil
}

// Close releases the mmap and file handle without finalizing; used on
// abnormal shutdown paths where the session is abandoned.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.data != nil {
		_ = unix.Munmap(w.data)
		w.data = nil
	}

	return w.file.Close()
}

// Reader provides read-only access to a finalized data file: EntryAt
// decodes the entry at a byte offset and Iterate walks every entry in file
// order. It does not read the companion index.
type Reader struct {
	file *os.File
	data []byte
}

// Open mmaps a finalized data file read-only.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("stat data file: %w", err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("mmap data file: %w", err)
	}

	return &Reader{file: file, data: data}, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() (Header, error) {
	return DecodeHeader(r.data)
}

// EntryAt decodes the entry starting at byte offset.
func (r *Reader) EntryAt(offset uint64) (EntryHeader, []byte, error) {
	if offset >= uint64(len(r.data)) {
		return EntryHeader{}, nil, ErrTruncated
	}

	eh, raw, _, err := DecodeEntry(r.data[offset:])

	return eh, raw, err
}

// Iterate walks every entry in file order starting just past the header.
func (r *Reader) Iterate(fn func(EntryHeader, []byte) error) error {
	pos := uint64(HeaderSize)

	for pos < uint64(len(r.data)) {
		eh, raw, consumed, err := DecodeEntry(r.data[pos:])
		if err != nil {
			return err
		}

		if err := fn(eh, raw); err != nil {
			return err
		}

		pos += uint64(consumed)
	}

	return nil
}

// Close releases the mmap and file handle.
func (r *Reader) Close() error {
	if r.data != nil {
		_ = unix.Munmap(r.data)
		r.data = nil
	}

	return r.file.Close()
}
