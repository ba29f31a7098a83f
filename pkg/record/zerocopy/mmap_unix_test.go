//go:build unix

package zerocopy

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriterAppendAndFinalizeThenRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.bin")
	indexPath := filepath.Join(dir, "index.bin")

	w, err := Create(dataPath, HeaderSize+4096)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payloads := [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05, 0x06}}
	for i, p := range payloads {
		if err := w.Append(uint64(i), 0, EntryOutput, p); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	index, header, err := w.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if header.TotalEntries != uint64(len(payloads)) {
		t.Fatalf("expected %d entries, got %d", len(payloads), header.TotalEntries)
	}

	if !header.Finalized() {
		t.Fatalf("expected finalized header")
	}

	if _, _, err := w.Finalize(); err != ErrAlreadyFinalized {
		t.Fatalf("expected ErrAlreadyFinalized on second call, got %v", err)
	}

	if err := WriteIndexFile(indexPath, index); err != nil {
		t.Fatalf("write index: %v", err)
	}

	reloadedIndex, err := ReadIndexFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}

	if len(reloadedIndex) != len(payloads) {
		t.Fatalf("expected %d index entries, got %d", len(payloads), len(reloadedIndex))
	}

	reader, err := Open(dataPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	var got [][]byte

	err = reader.Iterate(func(eh EntryHeader, raw []byte) error {
		got = append(got, append([]byte(nil), raw...))

		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if len(got) != len(payloads) {
		t.Fatalf("expected %d entries read back, got %d", len(payloads), len(got))
	}

	for i, want := range payloads {
		if !bytes.Equal(got[i], want) {
			t.Fatalf("entry %d mismatch: got %v want %v", i, got[i], want)
		}
	}
}

func TestWriterReportsBufferFull(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "data.bin"), HeaderSize+EntryHeaderSize+2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	if err := w.Append(0, 0, EntryOutput, []byte{0x01}); err != nil {
		t.Fatalf("first append should fit: %v", err)
	}

	if err := w.Append(1, 0, EntryOutput, []byte{0x01, 0x02, 0x03}); err != ErrBufferFull {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
}
