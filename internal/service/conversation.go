// Package service exposes the sync layer's operations to the API and the
// client sessions.
package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/directory"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	backend   backend.Backend
	directory *directory.Directory
	logger    *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(b backend.Backend, log *logger.Logger) *ConversationService {
	return &ConversationService{
		backend:   b,
		directory: directory.New(b, log),
		logger:    log.Named("conversations"),
	}
}

// GetOrCreate returns the conversation between userID and otherUserID.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID, otherUserID string) (*model.Conversation, error) {
	return s.directory.GetOrCreate(ctx, userID, otherUserID)
}

// List returns userID's conversations with unread counts.
func (s *ConversationService) List(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	list, err := s.directory.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range list {
		total += c.UnreadCount
	}
	if list == nil {
		list = []model.ConversationSummary{}
	}
	return &model.ListConversationsResponse{Conversations: list, TotalUnread: total}, nil
}

// Get returns a conversation userID participates in.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperrors.ErrMissingConversation
	}
	conv, err := s.backend.GetConversation(ctx, conversationID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, apperrors.Backend("could not load conversation", err)
	}
	// Outsiders get the same answer as for a missing conversation.
	if !conv.HasParticipant(userID) {
		return nil, apperrors.ErrConversationNotFound
	}
	return conv, nil
}

// MarkRead flags userID's inbound messages in the conversation read.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID string) error {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.backend.MarkRead(ctx, conversationID, userID); err != nil {
		s.logger.Warn("mark read failed",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return apperrors.Backend("could not mark messages read", err)
	}
	return nil
}
