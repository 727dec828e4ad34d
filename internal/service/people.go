package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// PeopleService handles follows and notifications.
type PeopleService struct {
	backend backend.Backend
	logger  *logger.Logger
}

// NewPeopleService creates a new people service.
func NewPeopleService(b backend.Backend, log *logger.Logger) *PeopleService {
	return &PeopleService{
		backend: b,
		logger:  log.Named("people"),
	}
}

// Follow makes userID follow otherUserID. Following twice is not an error.
func (s *PeopleService) Follow(ctx context.Context, userID, otherUserID string) error {
	if otherUserID == "" {
		return apperrors.ErrMissingUserID
	}
	if userID == otherUserID {
		return apperrors.ErrSelfFollow
	}
	if _, err := s.backend.GetProfile(ctx, otherUserID); err != nil {
		return notFoundAs(err, apperrors.ErrUserNotFound)
	}

	err := s.backend.Follow(ctx, &model.Follow{FollowerID: userID, FolloweeID: otherUserID})
	if errors.Is(err, backend.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to follow user: %w", err)
	}
	s.logger.Debug("user followed", zap.String("follower_id", userID), zap.String("followee_id", otherUserID))
	return nil
}

// Unfollow removes userID's follow of otherUserID.
func (s *PeopleService) Unfollow(ctx context.Context, userID, otherUserID string) error {
	return notFoundAs(s.backend.Unfollow(ctx, userID, otherUserID), apperrors.ErrNotFollowing)
}

// People returns userID's followers and followees.
func (s *PeopleService) People(ctx context.Context, userID string) (*model.People, error) {
	return s.backend.ListPeople(ctx, userID)
}

// Notifications returns a page of userID's notifications and their unread
// total.
func (s *PeopleService) Notifications(ctx context.Context, userID string, limit, offset int) (*model.ListNotificationsResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	list, err := s.backend.ListNotifications(ctx, userID, limit+1, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.backend.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	hasMore := len(list) > limit
	if hasMore {
		list = list[:limit]
	}
	return &model.ListNotificationsResponse{Notifications: list, Unread: unread, HasMore: hasMore}, nil
}

// UnreadNotifications counts userID's unread notifications.
func (s *PeopleService) UnreadNotifications(ctx context.Context, userID string) (int, error) {
	return s.backend.CountUnreadNotifications(ctx, userID)
}

// ReadNotifications marks all of userID's notifications read.
func (s *PeopleService) ReadNotifications(ctx context.Context, userID string) error {
	if err := s.backend.MarkNotificationsRead(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
