package zerocopy

import (
	"fmt"
	"os"
	"sort"
)

// WriteIndexFile persists a sorted-by-tick slice of index entries to
// path as concatenated fixed-size records.
func WriteIndexFile(path string, entries []IndexEntry) error {
	sorted := append([]IndexEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	buf := make([]byte, 0, len(sorted)*IndexEntrySize)
	for _, e := range sorted {
		buf = append(buf, EncodeIndexEntry(e)...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}

	return nil
}

// ReadIndexFile loads every fixed-size record from path.
func ReadIndexFile(path string) ([]IndexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}

	if len(data)%IndexEntrySize != 0 {
		return nil, ErrTruncated
	}

	count := len(data) / IndexEntrySize
	entries := make([]IndexEntry, 0, count)

	for i := 0; i < count; i++ {
		entry, err := DecodeIndexEntry(data[i*IndexEntrySize:])
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
