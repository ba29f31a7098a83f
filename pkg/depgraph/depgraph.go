// Package depgraph derives topological execution levels from pub/sub
// topology (component C7, spec §4.9).
package depgraph

// Edge is a publisher->subscriber dependency on a shared topic.
type Edge struct {
	From  string
	To    string
	Topic string
}

// Triple is a single node's declared role on a topic, as collected by the
// scheduler during Add/AddRT (spec §4.1).
type Triple struct {
	Node      string
	Topic     string
	Type      string
	Publisher bool
}

// Stats summarizes a built graph, matching spec §4.9's exposed surface.
type Stats struct {
	TotalNodes int
	TotalEdges int
	NumLevels  int
}

// Graph holds derived levels and edges for a set of nodes.
type Graph struct {
	levels   [][]string
	edges    []Edge
	cyclic   bool
	allNodes []string
}

// Build constructs a Graph from collected triples. Nodes with no
// publishers or subscribers still appear as singleton level-0 entries so
// every registered node gets an execution slot.
func Build(nodeNames []string, triples []Triple) *Graph {
	publishersByTopic := make(map[string][]string)
	subscribersByTopic := make(map[string][]string)

	for _, tr := range triples {
		if tr.Publisher {
			publishersByTopic[tr.Topic] = append(publishersByTopic[tr.Topic], tr.Node)
		} else {
			subscribersByTopic[tr.Topic] = append(subscribersByTopic[tr.Topic], tr.Node)
		}
	}

	var edges []Edge

	adjacency := make(map[string][]string)
	indegree := make(map[string]int)

	for _, n := range nodeNames {
		indegree[n] = 0
	}

	for topic, pubs := range publishersByTopic {
		for _, sub := range subscribersByTopic[topic] {
			for _, pub := range pubs {
				if pub == sub {
					continue
				}

				adjacency[pub] = append(adjacency[pub], sub)
				indegree[sub]++
				edges = append(edges, Edge{From: pub, To: sub, Topic: topic})
			}
		}
	}

	levels, cyclic := topoLevels(nodeNames, adjacency, indegree)

	return &Graph{levels: levels, edges: edges, cyclic: cyclic, allNodes: nodeNames}
}

// topoLevels performs a Kahn's-algorithm layering: level 0 is every node
// with indegree 0, level k+1 is every node whose dependencies all resolved
// by level k. If a cycle prevents some nodes from ever reaching indegree
// 0, the cycle is reported and the caller should fall back to
// sequential-by-priority execution (spec §4.9, §9 "Cyclic pub/sub").
func topoLevels(nodeNames []string, adjacency map[string][]string, indegree map[string]int) ([][]string, bool) {
	remaining := make(map[string]int, len(indegree))
	for k, v := range indegree {
		remaining[k] = v
	}

	var levels [][]string

	placed := 0

	for {
		var level []string

		for _, n := range nodeNames {
			if _, ok := remaining[n]; !ok {
				continue
			}

			if remaining[n] == 0 {
				level = append(level, n)
			}
		}

		if len(level) == 0 {
			break
		}

		for _, n := range level {
			delete(remaining, n)
		}

		for _, n := range level {
			for _, dep := range adjacency[n] {
				if _, ok := remaining[dep]; ok {
					remaining[dep]--
				}
			}
		}

		levels = append(levels, level)
		placed += len(level)
	}

	cyclic := placed != len(nodeNames)

	return levels, cyclic
}

// Levels returns the computed topo levels in execution order. Empty if
// the graph is cyclic.
func (g *Graph) Levels() [][]string {
	if g.cyclic {
		return nil
	}

	return g.levels
}

// Cyclic reports whether a cycle was detected, in which case callers must
// fall back to sequential-by-priority execution.
func (g *Graph) Cyclic() bool {
	return g.cyclic
}

// Stats returns the graph's summary counters.
func (g *Graph) Stats() Stats {
	levels := len(g.levels)
	if g.cyclic {
		levels = 0
	}

	return Stats{
		TotalNodes: len(g.allNodes),
		TotalEdges: len(g.edges),
		NumLevels:  levels,
	}
}

// Edges returns the derived publisher->subscriber edges.
func (g *Graph) Edges() []Edge {
	return g.edges
}
