package zerocopy

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata is the JSON sidecar accompanying a data/index file pair.
type Metadata struct {
	SessionID      string            `json:"sessionId"`
	CreatedAtUnix  int64             `json:"createdAtUnix"`
	FinalizedAt    int64             `json:"finalizedAt,omitempty"`
	TotalEntries   uint64            `json:"totalEntries"`
	TotalDataBytes uint64            `json:"totalDataBytes"`
	Finalized      bool              `json:"finalized"`
	InternTable    map[string]uint32 `json:"internTable"`
}

// EncodeMetadata renders m as indented JSON.
func EncodeMetadata(m Metadata) ([]byte, error) {
	return jsonAPI.MarshalIndent(m, "", "  ")
}

// DecodeMetadata parses a metadata sidecar.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata

	err := jsonAPI.Unmarshal(data, &m)

	return m, err
}

// InternTable assigns stable u32 ids to topic names in first-seen order,
// matching the "topic-name<->u32" sidecar contract from spec §4.11.
type InternTable struct {
	byName map[string]uint32
	byID   []string
}

// NewInternTable constructs an empty table.
func NewInternTable() *InternTable {
	return &InternTable{byName: make(map[string]uint32)}
}

// Intern returns the id for name, assigning a new one if unseen.
func (t *InternTable) Intern(name string) uint32 {
	if id, ok := t.byName[name]; ok {
		return id
	}

	id := uint32(len(t.byID))
	t.byName[name] = id
	t.byID = append(t.byID, name)

	return id
}

// Name resolves an id back to its topic name.
func (t *InternTable) Name(id uint32) (string, bool) {
	if int(id) >= len(t.byID) {
		return "", false
	}

	return t.byID[id], true
}

// AsMap exports the table for inclusion in a Metadata sidecar.
func (t *InternTable) AsMap() map[string]uint32 {
	out := make(map[string]uint32, len(t.byName))
	for k, v := range t.byName {
		out[k] = v
	}

	return out
}

// LoadInternTable reconstructs an InternTable from a decoded sidecar map.
func LoadInternTable(m map[string]uint32) *InternTable {
	t := NewInternTable()

	maxID := uint32(0)
	for _, id := range m {
		if id+1 > maxID {
			maxID = id + 1
		}
	}

	t.byID = make([]string, maxID)

	for name, id := range m {
		t.byName[name] = id
		t.byID[id] = name
	}

	return t
}
