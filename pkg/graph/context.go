package graph

import "sync/atomic"

// GraphContext holds the process-local identifier counters a Graph needs.
// It is an explicit value passed to New, never package-level state, so a
// process hosting multiple graphs (or tests running in parallel) can give
// each graph its own identifier space.
type GraphContext struct {
	nodeSeq atomic.Int64
	edgeSeq atomic.Int64
	convSeq atomic.Int64
}

// NewContext returns a fresh GraphContext with all counters at zero.
func NewContext() *GraphContext {
	return &GraphContext{}
}

func (c *GraphContext) nextNodeID() int64 {
	return c.nodeSeq.Add(1)
}

func (c *GraphContext) nextEdgeID() int64 {
	return c.edgeSeq.Add(1)
}

func (c *GraphContext) nextConversationID() int64 {
	return c.convSeq.Add(1)
}

// FastForward advances each counter to at least the given value, so that
// subsequent allocations never collide with identifiers restored from a
// snapshot. Called once by snapshot.Load after every node, edge, and
// conversation has been restored.
func (c *GraphContext) FastForward(maxNodeID, maxEdgeID, maxConversationID int64) {
	fastForward(&c.nodeSeq, maxNodeID)
	fastForward(&c.edgeSeq, maxEdgeID)
	fastForward(&c.convSeq, maxConversationID)
}

func fastForward(seq *atomic.Int64, value int64) {
	for {
		cur := seq.Load()
		if cur >= value {
			return
		}
		if seq.CompareAndSwap(cur, value) {
			return
		}
	}
}
