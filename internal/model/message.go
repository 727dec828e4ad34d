package model

import (
	"strings"
	"time"
)

// PendingIDPrefix marks ids assigned locally to provisional messages. Server
// ids are UUIDs and never carry it.
const PendingIDPrefix = "pending-"

// AttachmentType is the media kind of an attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
)

// Attachment is binary content linked to one message.
type Attachment struct {
	ID        string         `json:"id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Type      AttachmentType `json:"file_type"`
	URL       string         `json:"file_url,omitempty"`
	Name      string         `json:"file_name"`
	Size      int64          `json:"file_size"`
}

// Message is a chat entry. ClientID is the sender's correlation id and is
// persisted so change-feed echoes can be matched to provisional entries.
type Message struct {
	ID             string       `json:"id"`
	ClientID       string       `json:"client_id,omitempty"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	ReceiverID     string       `json:"receiver_id"`
	Body           string       `json:"message_text"`
	CreatedAt      time.Time    `json:"created_at"`
	Read           bool         `json:"isread"`
	Attachments    []Attachment `json:"attachments,omitempty"`

	// Pending is true while the message only exists locally.
	Pending bool `json:"pending,omitempty"`
}

// IsProvisional reports whether the message carries a locally assigned id.
func (m *Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, PendingIDPrefix)
}

// Upload is an attachment still held in memory, before it is stored.
type Upload struct {
	Type AttachmentType `json:"type"`
	Name string         `json:"name"`
	Data []byte         `json:"data"`
}

// Draft is the input of a send.
type Draft struct {
	ConversationID string   `json:"conversation_id"`
	SenderID       string   `json:"sender_id"`
	Body           string   `json:"text"`
	Attachments    []Upload `json:"attachments,omitempty"`
	ClientID       string   `json:"client_id,omitempty"`
}

// Empty reports whether the draft has neither text nor attachments.
func (d *Draft) Empty() bool {
	return strings.TrimSpace(d.Body) == "" && len(d.Attachments) == 0
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Text        string   `json:"text"`
	Attachments []Upload `json:"attachments,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
