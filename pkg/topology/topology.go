// Package topology implements the pre-run pub/sub completeness and
// type-compatibility checks described in spec §4.10 (component C12).
package topology

import (
	"fmt"
	"sort"

	"horus/pkg/depgraph"
)

// Validate groups triples by topic and, in strict mode, requires every
// topic to have at least one publisher and one subscriber, all declaring
// the same type string. It returns human-readable error strings; an
// empty slice means the topology passed (spec §8 invariant 6).
func Validate(triples []depgraph.Triple, strict bool) []string {
	if !strict {
		return nil
	}

	type topicInfo struct {
		publishers  []string
		subscribers []string
		types       map[string][]string // type -> node names declaring it
	}

	byTopic := make(map[string]*topicInfo)

	var topics []string

	for _, tr := range triples {
		info, ok := byTopic[tr.Topic]
		if !ok {
			info = &topicInfo{types: make(map[string][]string)}
			byTopic[tr.Topic] = info
			topics = append(topics, tr.Topic)
		}

		if tr.Publisher {
			info.publishers = append(info.publishers, tr.Node)
		} else {
			info.subscribers = append(info.subscribers, tr.Node)
		}

		info.types[tr.Type] = append(info.types[tr.Type], tr.Node)
	}

	sort.Strings(topics)

	var errs []string

	for _, topic := range topics {
		info := byTopic[topic]

		if len(info.publishers) == 0 {
			errs = append(errs, fmt.Sprintf(
				"topic %q has %d subscriber(s) but no publisher", topic, len(info.subscribers)))
		}

		if len(info.subscribers) == 0 {
			errs = append(errs, fmt.Sprintf(
				"topic %q has %d publisher(s) but no subscriber", topic, len(info.publishers)))
		}

		if len(info.types) > 1 {
			errs = append(errs, fmt.Sprintf(
				"topic %q has mismatched types: %s", topic, describeTypeMismatch(info.types)))
		}
	}

	return errs
}

func describeTypeMismatch(types map[string][]string) string {
	kinds := make([]string, 0, len(types))
	for t := range types {
		kinds = append(kinds, t)
	}

	sort.Strings(kinds)

	out := ""

	for i, t := range kinds {
		if i > 0 {
			out += "; "
		}

		nodes := append([]string(nil), types[t]...)
		sort.Strings(nodes)

		out += fmt.Sprintf("%q declared by %v", t, nodes)
	}

	return out
}
