package unread

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workhub-social/chatsync/internal/model"
)

func inbound(conv, sender string) *model.Message {
	return &model.Message{ID: "m", ConversationID: conv, SenderID: sender, ReceiverID: "viewer"}
}

func TestTracker_OnInbound(t *testing.T) {
	tr := NewTracker("viewer")

	assert.Equal(t, 1, tr.OnInbound(inbound("c1", "alice")))
	assert.Equal(t, 2, tr.OnInbound(inbound("c1", "alice")))
	assert.Equal(t, 1, tr.OnInbound(inbound("c2", "bob")))
	assert.Equal(t, 3, tr.Total())

	// Own messages never count.
	assert.Equal(t, 2, tr.OnInbound(inbound("c1", "viewer")))
	assert.Equal(t, 3, tr.Total())
}

func TestTracker_FocusedConversationStaysRead(t *testing.T) {
	tr := NewTracker("viewer")
	tr.OnInbound(inbound("c1", "alice"))
	tr.OnInbound(inbound("c1", "alice"))

	tr.Focus("c1")
	assert.True(t, tr.IsFocused("c1"))
	assert.Equal(t, 0, tr.OnInbound(inbound("c1", "alice")))
	assert.Equal(t, 0, tr.Count("c1"))

	tr.Blur("other")
	assert.True(t, tr.IsFocused("c1"), "blur of another conversation keeps focus")

	tr.Blur("c1")
	assert.False(t, tr.IsFocused("c1"))
	assert.Equal(t, 1, tr.OnInbound(inbound("c1", "alice")))
}

func TestTracker_SeveralOpenScreens(t *testing.T) {
	tr := NewTracker("viewer")
	tr.Focus("a")
	tr.Focus("b")

	tr.Blur("b")
	assert.True(t, tr.IsFocused("a"), "closing one screen keeps the others focused")
	assert.Equal(t, 0, tr.OnInbound(inbound("a", "alice")))
	assert.Equal(t, 1, tr.OnInbound(inbound("b", "bob")))

	// Two screens on the same conversation.
	tr.Focus("a")
	tr.Blur("a")
	assert.True(t, tr.IsFocused("a"))
	tr.Blur("a")
	assert.False(t, tr.IsFocused("a"))
	tr.Blur("a")
	assert.Equal(t, 1, tr.OnInbound(inbound("a", "alice")))
}

func TestTracker_NeverNegative(t *testing.T) {
	tr := NewTracker("viewer")
	tr.OnInbound(inbound("c1", "alice"))

	assert.Equal(t, 0, tr.Decrement("c1", 5))
	assert.Equal(t, 0, tr.Count("c1"))
	assert.Equal(t, 0, tr.Decrement("missing", 1))
	assert.Equal(t, 0, tr.Total())
}

func TestTracker_Seed(t *testing.T) {
	tr := NewTracker("viewer")
	tr.OnInbound(inbound("stale", "alice"))
	tr.Focus("c3")

	tr.Seed([]model.ConversationSummary{
		{ID: "c1", UnreadCount: 4},
		{ID: "c2", UnreadCount: -2},
		{ID: "c3", UnreadCount: 7},
	})

	assert.Equal(t, map[string]int{"c1": 4}, tr.Snapshot())
	assert.Equal(t, 4, tr.Total())
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker("viewer")
	tr.OnInbound(inbound("c1", "alice"))
	tr.OnInbound(inbound("c2", "bob"))

	tr.Reset("c1")

	assert.Equal(t, 0, tr.Count("c1"))
	assert.Equal(t, 1, tr.Total())

	snap := tr.Snapshot()
	snap["c2"] = 100
	assert.Equal(t, 1, tr.Count("c2"), "snapshot is a copy")
}
