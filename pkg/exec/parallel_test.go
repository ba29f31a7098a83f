package exec

import (
	"context"
	"sync"
	"testing"

	"horus/pkg/node"
)

type countingNode struct {
	node.BaseNode

	name string

	mu    sync.Mutex
	ticks int
}

func (n *countingNode) Name() string { return n.name }

func (n *countingNode) Init(context.Context, *node.Context) error { return nil }

func (n *countingNode) Tick(context.Context, *node.Context) error {
	n.mu.Lock()
	n.ticks++
	n.mu.Unlock()

	return nil
}

func (n *countingNode) Shutdown(context.Context) error { return nil }

func (n *countingNode) tickCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.ticks
}

func registeredOf(n node.Node) *node.RegisteredNode {
	return &node.RegisteredNode{
		Node:        n,
		Context:     node.NewContext(n.Name(), node.ConfigFlags{}),
		Initialized: true,
	}
}

func TestParallelTicksEveryLevelFallback(t *testing.T) {
	t.Parallel()

	p := NewParallel(0)
	a := &countingNode{name: "a"}
	b := &countingNode{name: "b"}

	if err := p.SpawnNode(registeredOf(a)); err != nil {
		t.Fatalf("spawn a: %v", err)
	}

	if err := p.SpawnNode(registeredOf(b)); err != nil {
		t.Fatalf("spawn b: %v", err)
	}

	results := p.TickAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if a.tickCount() != 1 || b.tickCount() != 1 {
		t.Fatalf("expected both nodes ticked once, got a=%d b=%d", a.tickCount(), b.tickCount())
	}
}

func TestParallelHonorsLevelOrder(t *testing.T) {
	t.Parallel()

	p := NewParallel(4)
	a := &countingNode{name: "a"}
	b := &countingNode{name: "b"}

	if err := p.SpawnNode(registeredOf(a)); err != nil {
		t.Fatalf("spawn a: %v", err)
	}

	if err := p.SpawnNode(registeredOf(b)); err != nil {
		t.Fatalf("spawn b: %v", err)
	}

	p.SetLevels([][]string{{"a"}, {"b"}})

	results := p.TickAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Node != "a" || results[1].Node != "b" {
		t.Fatalf("expected level order a,b, got %s,%s", results[0].Node, results[1].Node)
	}
}

func TestParallelMaxThreadsBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const n = 8

	p := NewParallel(2)

	var level []string

	for i := 0; i < n; i++ {
		cn := &countingNode{name: string(rune('a' + i))}
		if err := p.SpawnNode(registeredOf(cn)); err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}

		level = append(level, cn.name)
	}

	p.SetLevels([][]string{level})

	results := p.TickAll(context.Background())
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
}
