package depgraph

import "testing"

func TestBuildLinearChain(t *testing.T) {
	t.Parallel()

	triples := []Triple{
		{Node: "a", Topic: "t1", Type: "Msg", Publisher: true},
		{Node: "b", Topic: "t1", Type: "Msg", Publisher: false},
		{Node: "b", Topic: "t2", Type: "Msg", Publisher: true},
		{Node: "c", Topic: "t2", Type: "Msg", Publisher: false},
	}

	g := Build([]string{"a", "b", "c"}, triples)

	if g.Cyclic() {
		t.Fatalf("expected acyclic graph")
	}

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(levels), levels)
	}

	if levels[0][0] != "a" || levels[1][0] != "b" || levels[2][0] != "c" {
		t.Fatalf("unexpected level ordering: %v", levels)
	}

	stats := g.Stats()
	if stats.TotalNodes != 3 || stats.TotalEdges != 2 || stats.NumLevels != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	t.Parallel()

	triples := []Triple{
		{Node: "a", Topic: "t1", Publisher: true},
		{Node: "b", Topic: "t1", Publisher: false},
		{Node: "b", Topic: "t2", Publisher: true},
		{Node: "a", Topic: "t2", Publisher: false},
	}

	g := Build([]string{"a", "b"}, triples)

	if !g.Cyclic() {
		t.Fatalf("expected cyclic graph to be detected")
	}

	if g.Levels() != nil {
		t.Fatalf("expected no levels for cyclic graph")
	}
}

func TestBuildIsolatedNodesFormSingleLevel(t *testing.T) {
	t.Parallel()

	g := Build([]string{"x", "y", "z"}, nil)

	levels := g.Levels()
	if len(levels) != 1 || len(levels[0]) != 3 {
		t.Fatalf("expected single level with all 3 nodes, got %v", levels)
	}
}
