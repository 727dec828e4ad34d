package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// JobService handles the job board.
type JobService struct {
	backend backend.Backend
	logger  *logger.Logger
	now     func() time.Time
}

// NewJobService creates a new job service.
func NewJobService(b backend.Backend, log *logger.Logger) *JobService {
	return &JobService{
		backend: b,
		logger:  log.Named("jobs"),
		now:     time.Now,
	}
}

// ListJobs returns a page of jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return s.backend.ListJobs(ctx, q)
}

// Get returns one job.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.backend.GetJob(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrJobNotFound)
	}
	return job, nil
}

// Save creates a job for userID, or updates userID's job when req.ID is
// set. A new file is uploaded before anything is written.
func (s *JobService) Save(ctx context.Context, userID string, req *model.SaveJobRequest) (*model.Job, error) {
	switch {
	case userID == "":
		return nil, apperrors.ErrMissingUserID
	case strings.TrimSpace(req.Title) == "":
		return nil, apperrors.Validation("job title is required")
	case strings.TrimSpace(req.CompanyName) == "":
		return nil, apperrors.Validation("company name is required")
	case strings.TrimSpace(req.Category) == "":
		return nil, apperrors.Validation("job category is required")
	}
	status := req.Status
	switch status {
	case "":
		status = model.JobOpen
	case model.JobOpen, model.JobClosed:
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown job status %q", status))
	}

	job := &model.Job{
		ID:               req.ID,
		UserID:           userID,
		Title:            req.Title,
		CompanyName:      req.CompanyName,
		Category:         req.Category,
		Industry:         req.Industry,
		EmploymentType:   req.EmploymentType,
		Salary:           req.Salary,
		Skills:           req.Skills,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		LinkForApply:     req.LinkForApply,
		Email:            req.Email,
		Status:           status,
	}
	if req.ID != "" {
		// Keep the stored file unless a new one is uploaded.
		existing, err := s.backend.GetJob(ctx, req.ID)
		if err != nil {
			return nil, notFoundAs(err, apperrors.ErrJobNotFound)
		}
		if existing.UserID != userID {
			return nil, apperrors.ErrJobNotFound
		}
		job.File = existing.File
	}

	if req.File != nil {
		folder := "jobImages"
		if req.File.Type == model.AttachmentVideo {
			folder = "jobVideos"
		}
		name := path.Base(strings.ReplaceAll(req.File.Name, "\\", "/"))
		key := fmt.Sprintf("%s/%s/%d-%s", folder, userID, s.now().UnixMilli(), name)
		url, err := s.backend.Upload(ctx, key, req.File.Data, http.DetectContentType(req.File.Data))
		if err != nil {
			s.logger.Warn("job file upload failed", zap.String("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("failed to upload job file: %w", err)
		}
		job.File = url
	}

	if err := s.backend.SaveJob(ctx, job); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	if job.Likes == nil {
		job.Likes = []model.JobLike{}
	}
	return job, nil
}

// Like records userID's like of a job. Liking twice is not an error.
func (s *JobService) Like(ctx context.Context, userID, jobID string) error {
	err := s.backend.LikeJob(ctx, &model.JobLike{JobID: jobID, UserID: userID})
	if errors.Is(err, backend.ErrConflict) {
		return nil
	}
	return notFoundAs(err, apperrors.ErrJobNotFound)
}

// Unlike removes userID's like of a job.
func (s *JobService) Unlike(ctx context.Context, userID, jobID string) error {
	return notFoundAs(s.backend.UnlikeJob(ctx, jobID, userID), apperrors.NotFound("like not found"))
}
