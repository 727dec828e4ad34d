package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// PostService handles the social feed.
type PostService struct {
	backend backend.Backend
	logger  *logger.Logger
	now     func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(b backend.Backend, log *logger.Logger) *PostService {
	return &PostService{
		backend: b,
		logger:  log.Named("posts"),
		now:     time.Now,
	}
}

// List returns a page of posts, newest first. userID filters by author.
func (s *PostService) List(ctx context.Context, limit, offset int, userID string) ([]model.Post, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.backend.ListPosts(ctx, limit, offset, userID)
}

// ListPosts satisfies timeline.Source.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error) {
	return s.List(ctx, limit, offset, userID)
}

// GetProfile satisfies timeline.Source.
func (s *PostService) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return s.backend.GetProfile(ctx, id)
}

// Create publishes a post, uploading its file first.
func (s *PostService) Create(ctx context.Context, userID string, req *model.CreatePostRequest) (*model.Post, error) {
	if strings.TrimSpace(req.Body) == "" && req.File == nil {
		return nil, apperrors.Validation("post needs a body or a file")
	}

	post := &model.Post{UserID: userID, Body: req.Body}
	if req.File != nil {
		name := path.Base(strings.ReplaceAll(req.File.Name, "\\", "/"))
		key := fmt.Sprintf("posts/%s/%d-%s", userID, s.now().UnixMilli(), name)
		url, err := s.backend.Upload(ctx, key, req.File.Data, http.DetectContentType(req.File.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to upload post file: %w", err)
		}
		post.File = url
	}

	if err := s.backend.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.Likes = []model.Like{}
	post.Comments = []model.Comment{}
	return post, nil
}

// Delete removes userID's post.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	return notFoundAs(s.backend.DeletePost(ctx, postID, userID), apperrors.ErrPostNotFound)
}

// Like records userID's like. Liking twice is not an error.
func (s *PostService) Like(ctx context.Context, userID, postID string) error {
	err := s.backend.LikePost(ctx, &model.Like{PostID: postID, UserID: userID})
	if errors.Is(err, backend.ErrConflict) {
		return nil
	}
	return notFoundAs(err, apperrors.ErrPostNotFound)
}

// Unlike removes userID's like.
func (s *PostService) Unlike(ctx context.Context, userID, postID string) error {
	return notFoundAs(s.backend.UnlikePost(ctx, postID, userID), apperrors.NotFound("like not found"))
}

// Comment adds a comment to a post.
func (s *PostService) Comment(ctx context.Context, userID, postID string, req *model.CreateCommentRequest) (*model.Comment, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.Validation("comment text is required")
	}
	c := &model.Comment{PostID: postID, UserID: userID, Text: req.Text}
	if err := s.backend.CreateComment(ctx, c); err != nil {
		return nil, notFoundAs(err, apperrors.ErrPostNotFound)
	}
	return c, nil
}

// DeleteComment removes userID's comment.
func (s *PostService) DeleteComment(ctx context.Context, userID, commentID string) error {
	return notFoundAs(s.backend.DeleteComment(ctx, commentID, userID), apperrors.NotFound("comment not found"))
}

// UpdateProfile replaces userID's profile.
func (s *PostService) UpdateProfile(ctx context.Context, userID string, p *model.Profile) (*model.Profile, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apperrors.Validation("name is required")
	}
	p.ID = userID
	if err := s.backend.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func notFoundAs(err, replacement error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return replacement
	}
	return err
}
