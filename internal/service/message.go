package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

const maxPageSize = 100

// MessageService persists and reads messages. It satisfies chat.Messages.
type MessageService struct {
	backend backend.Backend
	logger  *logger.Logger
	now     func() time.Time
}

// NewMessageService creates a new message service.
func NewMessageService(b backend.Backend, log *logger.Logger) *MessageService {
	return &MessageService{
		backend: b,
		logger:  log.Named("messages"),
		now:     time.Now,
	}
}

// List returns a page of messages, newest first.
func (s *MessageService) List(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	if conversationID == "" {
		return nil, apperrors.ErrMissingConversation
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.backend.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// Send uploads the attachments, then stores the message for the
// conversation's other participant and records it as the conversation's
// latest message. Nothing is committed or published when an upload fails.
func (s *MessageService) Send(ctx context.Context, draft model.Draft) (*model.Message, error) {
	if draft.Empty() {
		return nil, apperrors.ErrEmptyMessage
	}

	conv, err := s.backend.GetConversation(ctx, draft.ConversationID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !conv.HasParticipant(draft.SenderID) {
		return nil, apperrors.ErrNotParticipant
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ClientID:       draft.ClientID,
		ConversationID: conv.ID,
		SenderID:       draft.SenderID,
		ReceiverID:     conv.Other(draft.SenderID),
		Body:           draft.Body,
	}
	for _, up := range draft.Attachments {
		att, err := s.uploadAttachment(ctx, msg, up)
		if err != nil {
			s.logger.Error("attachment upload failed",
				zap.String("message_id", msg.ID),
				zap.String("file_name", up.Name),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to store attachment %q: %w", up.Name, err)
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	if err := s.backend.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	// The message is committed; a stale preview is not worth failing the send.
	if err := s.backend.TouchConversation(ctx, conv.ID, msg.Body, msg.SenderID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to update conversation preview",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	s.logger.Debug("message sent",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", conv.ID),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return msg, nil
}

func (s *MessageService) uploadAttachment(ctx context.Context, msg *model.Message, up model.Upload) (model.Attachment, error) {
	name := path.Base(strings.ReplaceAll(up.Name, "\\", "/"))
	key := fmt.Sprintf("messages/%s/%s/%s/%d-%s", msg.SenderID, msg.ConversationID, msg.ID, s.now().UnixMilli(), name)

	url, err := s.backend.Upload(ctx, key, up.Data, http.DetectContentType(up.Data))
	if err != nil {
		return model.Attachment{}, err
	}
	return model.Attachment{
		MessageID: msg.ID,
		Type:      up.Type,
		URL:       url,
		Name:      name,
		Size:      int64(len(up.Data)),
	}, nil
}

// MarkRead flags viewerID's inbound messages in the conversation read.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, viewerID string) error {
	return s.backend.MarkRead(ctx, conversationID, viewerID)
}

// Profile returns a user's public profile.
func (s *MessageService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.backend.GetProfile(ctx, userID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	return p, err
}
