package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/workhub-social/chatsync/internal/model"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestBuffer_InsertKeepsOrder(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "m3", CreatedAt: at(3)})
	b.upsert(model.Message{ID: "m1", CreatedAt: at(1)})
	b.upsert(model.Message{ID: "m2", CreatedAt: at(2)})
	b.upsert(model.Message{ID: "m2b", CreatedAt: at(2)})

	assert.Equal(t, []string{"m1", "m2", "m2b", "m3"}, ids(b.snapshot()))
}

func TestBuffer_DedupesByID(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "m1", Body: "a", CreatedAt: at(1)})
	_, changed := b.upsert(model.Message{ID: "m1", Body: "a", Read: true, CreatedAt: at(1)})

	assert.True(t, changed)
	snap := b.snapshot()
	assert.Len(t, snap, 1)
	assert.True(t, snap[0].Read)
}

func TestBuffer_ConfirmReplacesProvisionalInPlace(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "m1", CreatedAt: at(1)})
	b.upsert(model.Message{ID: "pending-c1", ClientID: "c1", CreatedAt: at(5), Pending: true,
		Attachments: []model.Attachment{{Name: "cat.png"}}})
	b.upsert(model.Message{ID: "m9", CreatedAt: at(9)})

	merged, changed := b.upsert(model.Message{ID: "srv-1", ClientID: "c1", CreatedAt: at(6)})

	assert.True(t, changed)
	assert.Equal(t, []string{"m1", "srv-1", "m9"}, ids(b.snapshot()))
	assert.False(t, merged.Pending)
	assert.Len(t, merged.Attachments, 1, "attachments kept when the confirmed row has none")
}

func TestBuffer_ConfirmRepositionsWhenOrderBreaks(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "pending-c1", ClientID: "c1", CreatedAt: at(1), Pending: true})
	b.upsert(model.Message{ID: "m5", CreatedAt: at(5)})

	b.upsert(model.Message{ID: "srv-1", ClientID: "c1", CreatedAt: at(7)})

	assert.Equal(t, []string{"m5", "srv-1"}, ids(b.snapshot()))
}

func TestBuffer_PendingNeverOverridesConfirmed(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "srv-1", ClientID: "c1", Body: "sent", CreatedAt: at(1)})

	kept, changed := b.upsert(model.Message{ID: "pending-c1", ClientID: "c1", Body: "draft", CreatedAt: at(2), Pending: true})

	assert.False(t, changed)
	assert.Equal(t, "srv-1", kept.ID)
	assert.Equal(t, "sent", b.snapshot()[0].Body)
}

func TestBuffer_UpdateIgnoresUnknown(t *testing.T) {
	var b buffer
	_, changed := b.update(model.Message{ID: "m1", CreatedAt: at(1)})

	assert.False(t, changed)
	assert.Empty(t, b.snapshot())
}

func TestBuffer_RemovePendingOnly(t *testing.T) {
	var b buffer
	b.upsert(model.Message{ID: "pending-c1", ClientID: "c1", CreatedAt: at(1), Pending: true})
	b.upsert(model.Message{ID: "srv-2", ClientID: "c2", CreatedAt: at(2)})

	removed, ok := b.removePending("c1")
	assert.True(t, ok)
	assert.Equal(t, "pending-c1", removed.ID)

	_, ok = b.removePending("c2")
	assert.False(t, ok, "confirmed entries stay")

	_, ok = b.removePending("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"srv-2"}, ids(b.snapshot()))
}
