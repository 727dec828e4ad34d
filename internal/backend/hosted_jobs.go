package backend

import (
	"context"

	"github.com/google/uuid"

	"github.com/workhub-social/chatsync/internal/model"
)

func jobKeys(j *model.Job) map[string]string {
	return map[string]string{
		"id":           j.ID,
		"user_id":      j.UserID,
		"category":     j.Category,
		"company_name": j.CompanyName,
	}
}

// ListJobs returns a page of the job board.
func (h *Hosted) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error) {
	var jobs []model.Job
	err := h.call(ctx, "ListJobs", func(ctx context.Context) error {
		var err error
		jobs, err = h.store.ListJobs(ctx, q)
		return err
	})
	return jobs, err
}

// GetJob loads one job.
func (h *Hosted) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := h.call(ctx, "GetJob", func(ctx context.Context) error {
		var err error
		job, err = h.store.GetJob(ctx, id)
		return err
	})
	return job, err
}

// SaveJob creates j, or updates it when j.ID names one of j.UserID's jobs.
// The published row carries the author profile.
func (h *Hosted) SaveJob(ctx context.Context, j *model.Job) error {
	typ := model.EventInsert
	err := h.call(ctx, "SaveJob", func(ctx context.Context) error {
		j.UpdatedAt = now()
		if j.ID == "" {
			j.ID = uuid.Must(uuid.NewV7()).String()
			j.CreatedAt = j.UpdatedAt
			return h.store.InsertJob(ctx, j)
		}
		typ = model.EventUpdate
		stored, err := h.store.UpdateJob(ctx, j)
		if err != nil {
			return err
		}
		*j = *stored
		return nil
	})
	if err != nil {
		return err
	}
	if author, err := h.store.GetProfile(ctx, j.UserID); err == nil {
		j.User = author
	}
	h.publish(ctx, model.TableJobs, typ, j, nil, jobKeys(j))
	return nil
}

// LikeJob records a like of a job.
func (h *Hosted) LikeJob(ctx context.Context, l *model.JobLike) error {
	err := h.call(ctx, "LikeJob", func(ctx context.Context) error {
		if l.ID == "" {
			l.ID = uuid.Must(uuid.NewV7()).String()
		}
		l.CreatedAt = now()
		return h.store.InsertJobLike(ctx, l)
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableJobLikes, model.EventInsert, l, nil, map[string]string{"id": l.ID, "job_id": l.JobID})
	return nil
}

// UnlikeJob removes userID's like of jobID.
func (h *Hosted) UnlikeJob(ctx context.Context, jobID, userID string) error {
	var old *model.JobLike
	err := h.call(ctx, "UnlikeJob", func(ctx context.Context) error {
		var err error
		old, err = h.store.DeleteJobLike(ctx, jobID, userID)
		return err
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableJobLikes, model.EventDelete, nil, old, map[string]string{"id": old.ID, "job_id": old.JobID})
	return nil
}
