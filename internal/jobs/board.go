// Package jobs reconciles the job board of one screen with pushed job and
// job-like changes.
package jobs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// DefaultPageSize is the number of jobs fetched per page.
const DefaultPageSize = 10

// Source is the backend surface a board reads from.
type Source interface {
	ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error)
}

// ChangeKind describes a board change.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// Change is delivered to observers after a job changed.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Job  model.Job  `json:"job"`
}

// Board is the job list of one screen, narrowed by a category or company.
type Board struct {
	source   Source
	logger   *logger.Logger
	pageSize int
	query    model.JobQuery

	mu      sync.Mutex
	jobs    []model.Job
	hasMore bool

	notifyMu  sync.Mutex
	observers []func(Change)

	alive atomic.Bool
}

// New creates a board for q. Paging fields of q are ignored.
func New(source Source, pageSize int, q model.JobQuery, log *logger.Logger) *Board {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	q.Limit, q.Offset = 0, 0
	b := &Board{
		source:   source,
		logger:   log.Named("jobs"),
		pageSize: pageSize,
		query:    q,
		hasMore:  true,
	}
	b.alive.Store(true)
	return b
}

// Query returns the board's filter.
func (b *Board) Query() model.JobQuery { return b.query }

// Observe registers fn for subsequent changes.
func (b *Board) Observe(fn func(Change)) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	b.observers = append(b.observers, fn)
}

func (b *Board) page(offset int) model.JobQuery {
	q := b.query
	q.Limit = b.pageSize
	q.Offset = offset
	return q
}

// Load replaces the list with the first page.
func (b *Board) Load(ctx context.Context) ([]model.Job, error) {
	if !b.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	page, err := b.source.ListJobs(ctx, b.page(0))
	if err != nil {
		return nil, apperrors.Backend("could not load jobs", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	b.jobs = page
	b.hasMore = len(page) == b.pageSize
	return b.snapshotLocked(), nil
}

// LoadMore appends the next page, skipping jobs already shown, and returns
// the jobs that were added.
func (b *Board) LoadMore(ctx context.Context) ([]model.Job, error) {
	if !b.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}

	b.mu.Lock()
	offset := len(b.jobs)
	more := b.hasMore
	b.mu.Unlock()
	if !more {
		return nil, nil
	}

	page, err := b.source.ListJobs(ctx, b.page(offset))
	if err != nil {
		return nil, apperrors.Backend("could not load jobs", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	var added []model.Job
	for _, j := range page {
		if b.indexLocked(j.ID) >= 0 {
			continue
		}
		b.jobs = append(b.jobs, j)
		added = append(added, j)
	}
	b.hasMore = len(page) == b.pageSize
	return added, nil
}

// HasMore reports whether the last page was full.
func (b *Board) HasMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasMore
}

// Snapshot returns the current jobs.
func (b *Board) Snapshot() []model.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Apply merges a pushed change event. Events for other tables are ignored.
func (b *Board) Apply(ev model.ChangeEvent) error {
	if !b.alive.Load() {
		return nil
	}
	switch ev.Table {
	case model.TableJobs:
		var j model.Job
		if err := ev.DecodeNew(&j); err != nil {
			return err
		}
		switch ev.Type {
		case model.EventInsert:
			if b.query.Matches(&j) {
				b.insert(j)
			}
		case model.EventUpdate:
			b.update(j)
		}
	case model.TableJobLikes:
		return b.applyLike(ev)
	}
	return nil
}

func (b *Board) applyLike(ev model.ChangeEvent) error {
	switch ev.Type {
	case model.EventInsert:
		var l model.JobLike
		if err := ev.DecodeNew(&l); err != nil {
			return err
		}
		b.modify(l.JobID, func(j *model.Job) {
			for _, existing := range j.Likes {
				if existing.ID == l.ID || existing.UserID == l.UserID {
					return
				}
			}
			j.Likes = append(j.Likes, l)
		})
	case model.EventDelete:
		var l model.JobLike
		if err := ev.DecodeOld(&l); err != nil {
			return err
		}
		b.modify(l.JobID, func(j *model.Job) {
			out := j.Likes[:0:0]
			for _, existing := range j.Likes {
				if existing.ID != l.ID {
					out = append(out, existing)
				}
			}
			j.Likes = out
		})
	}
	return nil
}

func (b *Board) insert(j model.Job) {
	if j.Likes == nil {
		j.Likes = []model.JobLike{}
	}

	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	if b.indexLocked(j.ID) >= 0 {
		b.mu.Unlock()
		return
	}
	b.jobs = append([]model.Job{j}, b.jobs...)
	b.mu.Unlock()
	b.notify(Change{Kind: ChangeUpsert, Job: j})
}

// update replaces a shown job's fields, keeping its likes. A job edited out
// of the board's filter is removed. Jobs that are not shown stay unshown;
// their place in the paging order is unknown.
func (b *Board) update(j model.Job) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	idx := b.indexLocked(j.ID)
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	if !b.query.Matches(&j) {
		removed := b.jobs[idx]
		b.jobs = append(b.jobs[:idx], b.jobs[idx+1:]...)
		b.mu.Unlock()
		b.notify(Change{Kind: ChangeRemove, Job: removed})
		return
	}
	j.Likes = b.jobs[idx].Likes
	if j.User == nil {
		j.User = b.jobs[idx].User
	}
	b.jobs[idx] = j
	b.mu.Unlock()
	b.notify(Change{Kind: ChangeUpsert, Job: j})
}

func (b *Board) modify(jobID string, fn func(j *model.Job)) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	idx := b.indexLocked(jobID)
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	fn(&b.jobs[idx])
	updated := b.jobs[idx]
	b.mu.Unlock()

	b.notify(Change{Kind: ChangeUpsert, Job: updated})
}

// Close discards later results and events.
func (b *Board) Close() {
	b.alive.Store(false)
}

func (b *Board) notify(c Change) {
	for _, fn := range b.observers {
		fn(c)
	}
}

func (b *Board) indexLocked(id string) int {
	for i := range b.jobs {
		if b.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) snapshotLocked() []model.Job {
	out := make([]model.Job, len(b.jobs))
	copy(out, b.jobs)
	return out
}
