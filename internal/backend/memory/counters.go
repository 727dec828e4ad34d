package memory

import (
	"context"
	"sync"
)

// Counters is an in-memory backend.Counters.
type Counters struct {
	mu     sync.Mutex
	counts map[string]map[string]int64 // viewer -> conversation -> count
}

// NewCounters creates empty counters.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]map[string]int64)}
}

// Increment adds one to viewerID's count for conversationID.
func (c *Counters) Increment(ctx context.Context, viewerID, conversationID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byConv, ok := c.counts[viewerID]
	if !ok {
		byConv = make(map[string]int64)
		c.counts[viewerID] = byConv
	}
	byConv[conversationID]++
	return byConv[conversationID], nil
}

// Reset zeroes viewerID's count for conversationID.
func (c *Counters) Reset(ctx context.Context, viewerID, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts[viewerID], conversationID)
	return nil
}

// All returns a copy of viewerID's counts.
func (c *Counters) All(ctx context.Context, viewerID string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.counts[viewerID]))
	for k, v := range c.counts[viewerID] {
		out[k] = v
	}
	return out, nil
}
