// Package directory resolves and lists one-to-one conversations.
package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// Store is the subset of the backend the directory needs.
type Store interface {
	FindConversation(ctx context.Context, a, b string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

// Directory maps unordered user pairs to conversations.
type Directory struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

// New creates a directory over store.
func New(store Store, log *logger.Logger) *Directory {
	return &Directory{
		store:  store,
		logger: log.Named("directory"),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// GetOrCreate returns the conversation between currentUserID and otherUserID,
// creating it on first use. Concurrent callers for the same pair get the same
// row: a unique-key conflict on insert falls back to reading the winner.
func (d *Directory) GetOrCreate(ctx context.Context, currentUserID, otherUserID string) (*model.Conversation, error) {
	currentUserID = strings.TrimSpace(currentUserID)
	otherUserID = strings.TrimSpace(otherUserID)
	if currentUserID == "" || otherUserID == "" {
		return nil, apperrors.ErrMissingUserID
	}
	if currentUserID == otherUserID {
		return nil, apperrors.ErrSelfConversation
	}

	a, b := model.CanonicalPair(currentUserID, otherUserID)

	conv, err := d.store.FindConversation(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, apperrors.Backend("could not look up conversation", err)
	}

	now := d.now()
	conv = &model.Conversation{
		ID:            uuid.Must(uuid.NewV7()).String(),
		UserAID:       a,
		UserBID:       b,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = d.store.CreateConversation(ctx, conv)
	switch {
	case err == nil:
		metrics.ConversationsTotal.Inc()
		d.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_a_id", a),
			zap.String("user_b_id", b),
		)
		return conv, nil
	case errors.Is(err, backend.ErrConflict):
		d.logger.Debug("conversation created concurrently, reading existing row",
			zap.String("user_a_id", a),
			zap.String("user_b_id", b),
		)
		existing, findErr := d.store.FindConversation(ctx, a, b)
		if findErr != nil {
			return nil, apperrors.Backend("could not read existing conversation", findErr)
		}
		return existing, nil
	default:
		return nil, apperrors.Backend("could not create conversation", err)
	}
}

// List returns userID's conversations, most recently updated first.
func (d *Directory) List(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.ErrMissingUserID
	}

	list, err := d.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperrors.Backend("could not list conversations", err)
	}
	Sort(list)
	return list, nil
}

// Sort orders conversations by updated_at descending, then id ascending.
func Sort(list []model.ConversationSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
