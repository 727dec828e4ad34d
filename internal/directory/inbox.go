package directory

import (
	"time"

	"github.com/workhub-social/chatsync/internal/model"
)

// ApplyMessage folds a new message into a conversation list: the matching
// entry takes the message as its preview and moves to the front. It reports
// false when the conversation is not in the list, in which case the list is
// returned unchanged and the caller should refetch.
func ApplyMessage(list []model.ConversationSummary, msg *model.Message) ([]model.ConversationSummary, bool) {
	return promote(list, msg.ConversationID, msg.Body, msg.SenderID, msg.CreatedAt)
}

// ApplyConversation folds a pushed conversation row into the list the same
// way ApplyMessage does, using the row's denormalized last message.
func ApplyConversation(list []model.ConversationSummary, conv *model.Conversation) ([]model.ConversationSummary, bool) {
	return promote(list, conv.ID, conv.LastMessage, conv.LastSenderID, conv.UpdatedAt)
}

func promote(list []model.ConversationSummary, id, text, senderID string, at time.Time) ([]model.ConversationSummary, bool) {
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return list, false
	}

	entry := list[idx]
	// Late or replayed events must not roll the preview back.
	if at.Before(entry.UpdatedAt) {
		return list, true
	}
	entry.LastMessage = text
	entry.LastSenderID = senderID
	entry.UpdatedAt = at

	out := make([]model.ConversationSummary, 0, len(list))
	out = append(out, entry)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out, true
}

// ApplyProfile refreshes the other-participant view wherever it is p.
func ApplyProfile(list []model.ConversationSummary, p *model.Profile) []model.ConversationSummary {
	out := make([]model.ConversationSummary, len(list))
	copy(out, list)
	for i := range out {
		if out[i].OtherUser.ID == p.ID {
			out[i].OtherUser = *p
		}
	}
	return out
}

// WithUnread copies list with unread counts taken from counts.
func WithUnread(list []model.ConversationSummary, counts map[string]int) []model.ConversationSummary {
	out := make([]model.ConversationSummary, len(list))
	copy(out, list)
	for i := range out {
		out[i].UnreadCount = counts[out[i].ID]
	}
	return out
}
