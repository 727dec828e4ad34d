package memory

import (
	"context"
	"sort"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

// ListJobs returns the jobs matching q, newest first.
func (s *Store) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Job
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if q.Matches(s.jobs[i]) {
			matched = append(matched, s.jobs[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := q.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	out := make([]model.Job, 0, end-offset)
	for _, j := range matched[offset:end] {
		out = append(out, s.joinJob(j))
	}
	return out, nil
}

func (s *Store) joinJob(j *model.Job) model.Job {
	job := *j
	if author, ok := s.profiles[j.UserID]; ok {
		a := *author
		job.User = &a
	}
	job.Likes = []model.JobLike{}
	for _, l := range s.jobLikes {
		if l.JobID == j.ID {
			job.Likes = append(job.Likes, *l)
		}
	}
	sort.Slice(job.Likes, func(a, b int) bool { return job.Likes[a].ID < job.Likes[b].ID })
	return job
}

func (s *Store) findJob(id string) *model.Job {
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// GetJob returns a job with author and likes.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j := s.findJob(id)
	if j == nil {
		return nil, backend.ErrNotFound
	}
	out := s.joinJob(j)
	return &out, nil
}

// InsertJob stores a job.
func (s *Store) InsertJob(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(j.ID) != nil {
		return backend.ErrConflict
	}
	stored := *j
	stored.User, stored.Likes = nil, nil
	s.jobs = append(s.jobs, &stored)
	return nil
}

// UpdateJob replaces the editable fields of the owner's job.
func (s *Store) UpdateJob(ctx context.Context, j *model.Job) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.findJob(j.ID)
	if stored == nil || stored.UserID != j.UserID {
		return nil, backend.ErrNotFound
	}
	createdAt := stored.CreatedAt
	*stored = *j
	stored.CreatedAt = createdAt
	stored.User, stored.Likes = nil, nil

	out := *stored
	return &out, nil
}

// InsertJobLike stores a like; one per user and job.
func (s *Store) InsertJobLike(ctx context.Context, l *model.JobLike) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(l.JobID) == nil {
		return backend.ErrNotFound
	}
	for _, existing := range s.jobLikes {
		if existing.JobID == l.JobID && existing.UserID == l.UserID {
			return backend.ErrConflict
		}
	}
	stored := *l
	s.jobLikes[l.ID] = &stored
	return nil
}

// DeleteJobLike removes userID's like of jobID.
func (s *Store) DeleteJobLike(ctx context.Context, jobID, userID string) (*model.JobLike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range s.jobLikes {
		if l.JobID == jobID && l.UserID == userID {
			delete(s.jobLikes, id)
			return l, nil
		}
	}
	return nil, backend.ErrNotFound
}
