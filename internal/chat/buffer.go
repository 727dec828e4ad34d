package chat

import (
	"github.com/workhub-social/chatsync/internal/model"
)

// buffer is a conversation's local message list, ordered by created_at
// ascending with ties kept in arrival order. An entry is identified by its
// id or, while it is provisional, by its client correlation id.
type buffer struct {
	items []model.Message
}

func (b *buffer) index(msg *model.Message) int {
	for i := range b.items {
		if msg.ID != "" && b.items[i].ID == msg.ID {
			return i
		}
		if msg.ClientID != "" && b.items[i].ClientID == msg.ClientID {
			return i
		}
	}
	return -1
}

// upsert inserts msg or replaces the entry it matches. A provisional copy
// never replaces a confirmed entry, and an incoming row without attachments
// keeps the ones already known. It reports whether the buffer changed.
func (b *buffer) upsert(msg model.Message) (model.Message, bool) {
	idx := b.index(&msg)
	if idx < 0 {
		b.insert(msg)
		return msg, true
	}

	existing := b.items[idx]
	if msg.Pending && !existing.Pending {
		return existing, false
	}
	if len(msg.Attachments) == 0 {
		msg.Attachments = existing.Attachments
	}
	if msg.ClientID == "" {
		msg.ClientID = existing.ClientID
	}
	b.items[idx] = msg
	b.reposition(idx)
	return msg, true
}

// update replaces a known entry and ignores unknown ones.
func (b *buffer) update(msg model.Message) (model.Message, bool) {
	if b.index(&msg) < 0 {
		return msg, false
	}
	return b.upsert(msg)
}

// insert places msg after every entry not newer than it.
func (b *buffer) insert(msg model.Message) {
	pos := len(b.items)
	for pos > 0 && b.items[pos-1].CreatedAt.After(msg.CreatedAt) {
		pos--
	}
	b.items = append(b.items, model.Message{})
	copy(b.items[pos+1:], b.items[pos:])
	b.items[pos] = msg
}

// reposition moves the entry at idx only if its new timestamp breaks the
// ordering with a neighbour. Confirmation normally keeps the slot.
func (b *buffer) reposition(idx int) {
	cur := b.items[idx]
	before := idx > 0 && b.items[idx-1].CreatedAt.After(cur.CreatedAt)
	after := idx < len(b.items)-1 && cur.CreatedAt.After(b.items[idx+1].CreatedAt)
	if !before && !after {
		return
	}
	b.items = append(b.items[:idx], b.items[idx+1:]...)
	b.insert(cur)
}

// removePending drops the provisional entry with clientID. Entries already
// confirmed stay.
func (b *buffer) removePending(clientID string) (model.Message, bool) {
	for i := range b.items {
		if b.items[i].ClientID != clientID {
			continue
		}
		if !b.items[i].Pending {
			return b.items[i], false
		}
		removed := b.items[i]
		b.items = append(b.items[:i], b.items[i+1:]...)
		return removed, true
	}
	return model.Message{}, false
}

func (b *buffer) snapshot() []model.Message {
	out := make([]model.Message, len(b.items))
	copy(out, b.items)
	return out
}
