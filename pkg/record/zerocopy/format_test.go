package zerocopy

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := Header{Version: 1, Flags: FlagFinalized, CreatedTSNanos: 123, TotalEntries: 4, TotalDataBytes: 99}
	decoded, err := DecodeHeader(EncodeHeader(h))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, h)
	}

	if !decoded.Finalized() {
		t.Fatalf("expected Finalized() true")
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	t.Parallel()

	buf := EncodeHeader(Header{})
	buf[0] = 'X'

	if _, err := DecodeHeader(buf); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0x02, 0x03}
	encoded := EncodeEntry(EntryHeader{Tick: 7, TopicID: 2, Type: EntryOutput, TSNanos: 55}, payload)

	eh, data, consumed, err := DecodeEntry(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if eh.Tick != 7 || eh.TopicID != 2 || eh.Type != EntryOutput {
		t.Fatalf("unexpected header: %+v", eh)
	}

	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: got %v want %v", data, payload)
	}

	if consumed != len(encoded) {
		t.Fatalf("expected consumed %d, got %d", len(encoded), consumed)
	}
}

func TestDecodeEntryDetectsCorruption(t *testing.T) {
	t.Parallel()

	encoded := EncodeEntry(EntryHeader{Tick: 1}, []byte{0xAA})
	encoded[len(encoded)-1] ^= 0xFF // corrupt the payload byte without touching data_len

	if _, _, _, err := DecodeEntry(encoded); err != ErrCRCMismatch {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestSearchIndex(t *testing.T) {
	t.Parallel()

	entries := []IndexEntry{
		{Tick: 0}, {Tick: 2}, {Tick: 5}, {Tick: 9},
	}

	if _, ok := SearchIndex(entries, 5); !ok {
		t.Fatalf("expected to find tick 5")
	}

	if _, ok := SearchIndex(entries, 6); ok {
		t.Fatalf("expected not to find tick 6")
	}
}

func TestInternTableAssignsStableIDs(t *testing.T) {
	t.Parallel()

	table := NewInternTable()

	a := table.Intern("topicA")
	b := table.Intern("topicB")
	aAgain := table.Intern("topicA")

	if a != aAgain {
		t.Fatalf("expected stable id for repeated intern, got %d and %d", a, aAgain)
	}

	if a == b {
		t.Fatalf("expected distinct ids for distinct topics")
	}

	name, ok := table.Name(b)
	if !ok || name != "topicB" {
		t.Fatalf("expected to resolve id %d back to topicB, got %q", b, name)
	}

	reloaded := LoadInternTable(table.AsMap())
	if reloadedName, ok := reloaded.Name(a); !ok || reloadedName != "topicA" {
		t.Fatalf("expected reloaded table to resolve topicA")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	m := Metadata{SessionID: "s1", TotalEntries: 3, Finalized: true, InternTable: map[string]uint32{"t": 0}}

	encoded, err := EncodeMetadata(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeMetadata(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.SessionID != m.SessionID || decoded.TotalEntries != m.TotalEntries {
		t.Fatalf("metadata mismatch: got %+v want %+v", decoded, m)
	}
}
