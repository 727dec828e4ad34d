// Package unread keeps per-conversation unread counters for one viewer.
package unread

import (
	"sync"

	"github.com/workhub-social/chatsync/internal/model"
)

// Tracker counts unread inbound messages per conversation for one viewer.
// Counts never go below zero. A Tracker belongs to a single client session.
type Tracker struct {
	mu     sync.Mutex
	viewer string
	counts map[string]int
	// focused counts the open screens per conversation.
	focused map[string]int
}

// NewTracker creates a tracker for viewerID.
func NewTracker(viewerID string) *Tracker {
	return &Tracker{
		viewer:  viewerID,
		counts:  make(map[string]int),
		focused: make(map[string]int),
	}
}

// Seed replaces all counts with the backend's view, e.g. from the
// conversation list. Negative inputs are clamped.
func (t *Tracker) Seed(list []model.ConversationSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts = make(map[string]int, len(list))
	for _, c := range list {
		if c.UnreadCount > 0 && t.focused[c.ID] == 0 {
			t.counts[c.ID] = c.UnreadCount
		}
	}
}

// OnInbound applies a newly arrived message. Messages from the viewer are
// ignored; messages for a focused conversation are read on arrival, which
// resets its count. It returns the resulting count.
func (t *Tracker) OnInbound(msg *model.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.SenderID == t.viewer {
		return t.counts[msg.ConversationID]
	}
	if t.focused[msg.ConversationID] > 0 {
		delete(t.counts, msg.ConversationID)
		return 0
	}
	t.counts[msg.ConversationID]++
	return t.counts[msg.ConversationID]
}

// Focus records an open screen on conversationID. Several screens, on the
// same or different conversations, may be open at once.
func (t *Tracker) Focus(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused[conversationID]++
}

// Blur records that one screen on conversationID closed. The conversation
// stays focused while another screen on it is open.
func (t *Tracker) Blur(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n := t.focused[conversationID]; {
	case n > 1:
		t.focused[conversationID] = n - 1
	case n == 1:
		delete(t.focused, conversationID)
	}
}

// IsFocused reports whether a screen on conversationID is open.
func (t *Tracker) IsFocused(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused[conversationID] > 0
}

// Reset zeroes conversationID's count (history loaded or marked read).
func (t *Tracker) Reset(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, conversationID)
}

// Decrement lowers conversationID's count by n, clamped at zero.
func (t *Tracker) Decrement(conversationID string, n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts[conversationID] - n
	if c <= 0 {
		delete(t.counts, conversationID)
		return 0
	}
	t.counts[conversationID] = c
	return c
}

// Count returns conversationID's count.
func (t *Tracker) Count(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[conversationID]
}

// Total returns the sum over all conversations.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Snapshot returns a copy of the non-zero counts.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
