package main

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"horus/pkg/node"
)

// heartbeatNode is the built-in node registered in demo mode so the daemon
// has something to tick when no embedding application has supplied its own
// nodes, mirroring the teacher's noop controller used to smoke-test the
// CLI's wiring end to end.
type heartbeatNode struct {
	node.BaseNode

	name   string
	logger *zap.Logger
	count  atomic.Uint64
}

func newHeartbeatNode(name string, logger *zap.Logger) *heartbeatNode {
	return &heartbeatNode{name: name, logger: logger}
}

func (n *heartbeatNode) Name() string { return n.name }

func (n *heartbeatNode) Init(context.Context, *node.Context) error {
	n.logger.Debug("demo node initialized", zap.String("node", n.name))

	return nil
}

func (n *heartbeatNode) Tick(context.Context, *node.Context) error {
	n.count.Add(1)

	return nil
}

func (n *heartbeatNode) Shutdown(context.Context) error {
	n.logger.Debug("demo node shutdown", zap.String("node", n.name), zap.Uint64("ticks", n.count.Load()))

	return nil
}
