// Package model defines data structures for the messaging and feed domain.
package model

import (
	"time"
)

// Conversation is a one-to-one channel between two users. UserAID is always
// the lexicographically smaller id.
type Conversation struct {
	ID            string    `json:"id"`
	UserAID       string    `json:"user_a_id"`
	UserBID       string    `json:"user_b_id"`
	LastMessage   string    `json:"last_message"`
	LastSenderID  string    `json:"last_sender_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Participants returns the two participant ids in canonical order.
func (c *Conversation) Participants() (string, string) {
	return c.UserAID, c.UserBID
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserAID == userID || c.UserBID == userID)
}

// Other returns the participant that is not userID, or "" if userID is not a
// participant.
func (c *Conversation) Other(userID string) string {
	switch userID {
	case c.UserAID:
		return c.UserBID
	case c.UserBID:
		return c.UserAID
	default:
		return ""
	}
}

// CanonicalPair orders two user ids so the pair {x,y} always maps to the
// same (a,b).
func CanonicalPair(x, y string) (string, string) {
	if y < x {
		return y, x
	}
	return x, y
}

// ConversationSummary is one row of a viewer's conversation list.
type ConversationSummary struct {
	ID           string    `json:"id"`
	OtherUser    Profile   `json:"other_user"`
	LastMessage  string    `json:"last_message"`
	LastSenderID string    `json:"last_sender_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	UnreadCount  int       `json:"unread_count"`
}

// CreateConversationRequest is the request to open a conversation with another user.
type CreateConversationRequest struct {
	OtherUserID string `json:"other_user_id"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	TotalUnread   int                   `json:"total_unread"`
}
