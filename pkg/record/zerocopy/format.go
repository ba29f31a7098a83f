// Package zerocopy implements the on-disk zero-copy recording format
// described in spec §4.11: a mmapped data file of concatenated entries, a
// fixed-size index file for binary-search seeks, and a JSON metadata
// sidecar carrying the topic intern table.
//
// All header decoding goes through a scratch byte copy before field
// extraction (spec §4.11, §9 "Zero-copy mmap alignment"): never cast a
// mmapped byte slice to an aligned struct pointer.
package zerocopy

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Magic identifies a horus zero-copy data file.
var Magic = [8]byte{'H', 'O', 'R', 'U', 'S', '_', 'Z', 'C'}

// CurrentVersion is the format version this package writes.
const CurrentVersion uint32 = 1

// FlagFinalized is set in the data-file header once Finalize has run.
const FlagFinalized uint32 = 1 << 0

// HeaderSize is the fixed byte length of the data-file header.
const HeaderSize = 8 + 4 + 4 + 8 + 8 + 8 + 32

// EntryHeaderSize is the fixed byte length preceding an entry's raw data.
const EntryHeaderSize = 8 + 4 + 1 + 1 + 2 + 8 + 4 + 4

// IndexEntrySize is the fixed byte length of one index-file record.
const IndexEntrySize = 8 + 8 + 4 + 2 + 2

// EntryType distinguishes what an entry's raw bytes represent.
type EntryType uint8

const (
	EntryInput EntryType = iota
	EntryOutput
	EntryState
)

var (
	// ErrBadMagic is returned when a data file's magic bytes don't match.
	ErrBadMagic = errors.New("zerocopy: bad magic")
	// ErrTruncated is returned when a buffer is shorter than a required
	// fixed-size record.
	ErrTruncated = errors.New("zerocopy: truncated record")
	// ErrCRCMismatch is returned when an entry's stored CRC doesn't match
	// its raw bytes.
	ErrCRCMismatch = errors.New("zerocopy: crc mismatch")
)

// Header is the decoded form of the data file's fixed preamble.
type Header struct {
	Version        uint32
	Flags          uint32
	CreatedTSNanos uint64
	TotalEntries   uint64
	TotalDataBytes uint64
}

// Finalized reports whether FlagFinalized is set.
func (h Header) Finalized() bool {
	return h.Flags&FlagFinalized != 0
}

// EncodeHeader serializes h into a HeaderSize-byte buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], h.Flags)
	binary.LittleEndian.PutUint64(buf[16:24], h.CreatedTSNanos)
	binary.LittleEndian.PutUint64(buf[24:32], h.TotalEntries)
	binary.LittleEndian.PutUint64(buf[32:40], h.TotalDataBytes)
	// bytes [40:72) are the reserved, zeroed region.

	return buf
}

// DecodeHeader parses a HeaderSize-byte buffer into a Header. The caller
// must pass a scratch copy, not a view into a live mmap.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTruncated
	}

	scratch := make([]byte, HeaderSize)
	copy(scratch, buf[:HeaderSize])

	var magic [8]byte

	copy(magic[:], scratch[0:8])

	if magic != Magic {
		return Header{}, ErrBadMagic
	}

	return Header{
		Version:        binary.LittleEndian.Uint32(scratch[8:12]),
		Flags:          binary.LittleEndian.Uint32(scratch[12:16]),
		CreatedTSNanos: binary.LittleEndian.Uint64(scratch[16:24]),
		TotalEntries:   binary.LittleEndian.Uint64(scratch[24:32]),
		TotalDataBytes: binary.LittleEndian.Uint64(scratch[32:40]),
	}, nil
}

// EntryHeader is the decoded fixed-size preamble of one data entry.
type EntryHeader struct {
	Tick    uint64
	TopicID uint32
	Type    EntryType
	Flags   uint8
	TSNanos uint64
	DataLen uint32
	CRC32   uint32
}

// EncodeEntry serializes an entry header plus raw bytes into one buffer.
func EncodeEntry(eh EntryHeader, data []byte) []byte {
	eh.DataLen = uint32(len(data))
	eh.CRC32 = crc32.ChecksumIEEE(data)

	buf := make([]byte, EntryHeaderSize+len(data))
	binary.LittleEndian.PutUint64(buf[0:8], eh.Tick)
	binary.LittleEndian.PutUint32(buf[8:12], eh.TopicID)
	buf[12] = byte(eh.Type)
	buf[13] = eh.Flags
	// buf[14:16] is the zeroed pad.
	binary.LittleEndian.PutUint64(buf[16:24], eh.TSNanos)
	binary.LittleEndian.PutUint32(buf[24:28], eh.DataLen)
	binary.LittleEndian.PutUint32(buf[28:32], eh.CRC32)
	copy(buf[EntryHeaderSize:], data)

	return buf
}

// DecodeEntry parses one entry (header + raw bytes) from buf, returning
// the header, the raw bytes (a copy, never a view into buf), and the
// total number of bytes consumed.
func DecodeEntry(buf []byte) (EntryHeader, []byte, int, error) {
	if len(buf) < EntryHeaderSize {
		return EntryHeader{}, nil, 0, ErrTruncated
	}

	scratch := make([]byte, EntryHeaderSize)
	copy(scratch, buf[:EntryHeaderSize])

	eh := EntryHeader{
		Tick:    binary.LittleEndian.Uint64(scratch[0:8]),
		TopicID: binary.LittleEndian.Uint32(scratch[8:12]),
		Type:    EntryType(scratch[12]),
		Flags:   scratch[13],
		TSNanos: binary.LittleEndian.Uint64(scratch[16:24]),
		DataLen: binary.LittleEndian.Uint32(scratch[24:28]),
		CRC32:   binary.LittleEndian.Uint32(scratch[28:32]),
	}

	total := EntryHeaderSize + int(eh.DataLen)
	if len(buf) < total {
		return EntryHeader{}, nil, 0, ErrTruncated
	}

	data := make([]byte, eh.DataLen)
	copy(data, buf[EntryHeaderSize:total])

	if crc32.ChecksumIEEE(data) != eh.CRC32 {
		return EntryHeader{}, nil, 0, ErrCRCMismatch
	}

	return eh, data, total, nil
}

// IndexEntry is one fixed-size record in the index file.
type IndexEntry struct {
	Tick       uint64
	DataOffset uint64
	TotalSize  uint32
	EntryCount uint16
	Flags      uint16
}

// EncodeIndexEntry serializes one index record.
func EncodeIndexEntry(e IndexEntry) []byte {
	buf := make([]byte, IndexEntrySize)
	binary.LittleEndian.PutUint64(buf[0:8], e.Tick)
	binary.LittleEndian.PutUint64(buf[8:16], e.DataOffset)
	binary.LittleEndian.PutUint32(buf[16:20], e.TotalSize)
	binary.LittleEndian.PutUint16(buf[20:22], e.EntryCount)
	binary.LittleEndian.PutUint16(buf[22:24], e.Flags)

	return buf
}

// DecodeIndexEntry parses one fixed-size index record.
func DecodeIndexEntry(buf []byte) (IndexEntry, error) {
	if len(buf) < IndexEntrySize {
		return IndexEntry{}, ErrTruncated
	}

	scratch := make([]byte, IndexEntrySize)
	copy(scratch, buf[:IndexEntrySize])

	return IndexEntry{
		Tick:       binary.LittleEndian.Uint64(scratch[0:8]),
		DataOffset: binary.LittleEndian.Uint64(scratch[8:16]),
		TotalSize:  binary.LittleEndian.Uint32(scratch[16:20]),
		EntryCount: binary.LittleEndian.Uint16(scratch[20:22]),
		Flags:      binary.LittleEndian.Uint16(scratch[22:24]),
	}, nil
}

// SearchIndex binary-searches a sorted (by Tick) slice of index entries
// for the entry with the given tick. Returns ok=false if absent.
func SearchIndex(entries []IndexEntry, tick uint64) (IndexEntry, bool) {
	lo, hi := 0, len(entries)

	for lo < hi {
		mid := lo + (hi-lo)/2

		switch {
		case entries[mid].Tick == tick:
			return entries[mid], true
		case entries[mid].Tick < tick:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return IndexEntry{}, false
}
