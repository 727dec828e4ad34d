// Package timeline reconciles the post feed of one home screen with pushed
// post, comment and like changes.
package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// DefaultPageSize is the number of posts fetched per page.
const DefaultPageSize = 10

const authorLookupTimeout = 10 * time.Second

// Source is the backend surface a timeline reads from.
type Source interface {
	ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
}

// ChangeKind describes a timeline change.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// Change is delivered to observers after a post changed.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Post model.Post `json:"post"`
}

// Timeline is the post list of one screen. The page size belongs to the
// screen, so two open screens page independently.
type Timeline struct {
	source   Source
	logger   *logger.Logger
	pageSize int
	authorID string

	mu      sync.Mutex
	posts   []model.Post
	hasMore bool

	notifyMu  sync.Mutex
	observers []func(Change)

	alive  atomic.Bool
	bgMu   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a timeline. A non-empty authorID restricts it to one user's
// posts (profile screen).
func New(source Source, pageSize int, authorID string, log *logger.Logger) *Timeline {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Timeline{
		source:   source,
		logger:   log.Named("timeline"),
		pageSize: pageSize,
		authorID: authorID,
		hasMore:  true,
		ctx:      ctx,
		cancel:   cancel,
	}
	t.alive.Store(true)
	return t
}

// Observe registers fn for subsequent changes.
func (t *Timeline) Observe(fn func(Change)) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	t.observers = append(t.observers, fn)
}

// Load replaces the list with the first page.
func (t *Timeline) Load(ctx context.Context) ([]model.Post, error) {
	if !t.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	page, err := t.source.ListPosts(ctx, t.pageSize, 0, t.authorID)
	if err != nil {
		return nil, apperrors.Backend("could not load posts", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	t.posts = page
	t.hasMore = len(page) == t.pageSize
	return t.snapshotLocked(), nil
}

// LoadMore appends the next page, skipping posts already shown. It returns
// the posts that were added.
func (t *Timeline) LoadMore(ctx context.Context) ([]model.Post, error) {
	if !t.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}

	t.mu.Lock()
	offset := len(t.posts)
	more := t.hasMore
	t.mu.Unlock()
	if !more {
		return nil, nil
	}

	page, err := t.source.ListPosts(ctx, t.pageSize, offset, t.authorID)
	if err != nil {
		return nil, apperrors.Backend("could not load posts", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	var added []model.Post
	for _, p := range page {
		if t.indexLocked(p.ID) >= 0 {
			continue
		}
		t.posts = append(t.posts, p)
		added = append(added, p)
	}
	t.hasMore = len(page) == t.pageSize
	return added, nil
}

// HasMore reports whether the last page was full.
func (t *Timeline) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

// Snapshot returns the current posts.
func (t *Timeline) Snapshot() []model.Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Apply merges a pushed change event. Events for other tables are ignored.
func (t *Timeline) Apply(ev model.ChangeEvent) error {
	if !t.alive.Load() {
		return nil
	}
	switch ev.Table {
	case model.TablePosts:
		return t.applyPost(ev)
	case model.TableComments:
		return t.applyComment(ev)
	case model.TableLikes:
		return t.applyLike(ev)
	}
	return nil
}

func (t *Timeline) applyPost(ev model.ChangeEvent) error {
	switch ev.Type {
	case model.EventInsert:
		var p model.Post
		if err := ev.DecodeNew(&p); err != nil {
			return err
		}
		if t.authorID != "" && p.UserID != t.authorID {
			return nil
		}
		t.insertPost(p)
	case model.EventUpdate:
		var p model.Post
		if err := ev.DecodeNew(&p); err != nil {
			return err
		}
		t.modify(p.ID, func(cur *model.Post) {
			cur.Body = p.Body
			cur.File = p.File
		})
	case model.EventDelete:
		var p model.Post
		if err := ev.DecodeOld(&p); err != nil {
			return err
		}
		t.removePost(p.ID)
	}
	return nil
}

func (t *Timeline) applyComment(ev model.ChangeEvent) error {
	switch ev.Type {
	case model.EventInsert:
		var c model.Comment
		if err := ev.DecodeNew(&c); err != nil {
			return err
		}
		t.modify(c.PostID, func(p *model.Post) {
			for _, existing := range p.Comments {
				if existing.ID == c.ID {
					return
				}
			}
			p.Comments = append([]model.Comment{c}, p.Comments...)
		})
	case model.EventDelete:
		var c model.Comment
		if err := ev.DecodeOld(&c); err != nil {
			return err
		}
		t.modify(c.PostID, func(p *model.Post) {
			p.Comments = removeComment(p.Comments, c.ID)
		})
	}
	return nil
}

func (t *Timeline) applyLike(ev model.ChangeEvent) error {
	switch ev.Type {
	case model.EventInsert:
		var l model.Like
		if err := ev.DecodeNew(&l); err != nil {
			return err
		}
		t.modify(l.PostID, func(p *model.Post) {
			for _, existing := range p.Likes {
				if existing.ID == l.ID || existing.UserID == l.UserID {
					return
				}
			}
			p.Likes = append(p.Likes, l)
		})
	case model.EventDelete:
		var l model.Like
		if err := ev.DecodeOld(&l); err != nil {
			return err
		}
		t.modify(l.PostID, func(p *model.Post) {
			p.Likes = removeLike(p.Likes, l.ID)
		})
	}
	return nil
}

// insertPost prepends p and looks its author up in the background when the
// event carried only the author id.
func (t *Timeline) insertPost(p model.Post) {
	if p.Likes == nil {
		p.Likes = []model.Like{}
	}
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}

	t.notifyMu.Lock()
	t.mu.Lock()
	if t.indexLocked(p.ID) >= 0 {
		t.mu.Unlock()
		t.notifyMu.Unlock()
		return
	}
	t.posts = append([]model.Post{p}, t.posts...)
	t.mu.Unlock()
	t.notify(Change{Kind: ChangeUpsert, Post: p})
	t.notifyMu.Unlock()

	if p.User == nil && p.UserID != "" {
		t.lookupAuthor(p.ID, p.UserID)
	}
}

func (t *Timeline) lookupAuthor(postID, userID string) {
	t.bgMu.Lock()
	if !t.alive.Load() {
		t.bgMu.Unlock()
		return
	}
	t.wg.Add(1)
	t.bgMu.Unlock()

	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(t.ctx, authorLookupTimeout)
		defer cancel()

		author, err := t.source.GetProfile(ctx, userID)
		if err != nil {
			if t.alive.Load() {
				t.logger.Warn("author lookup failed", zap.String("post_id", postID), zap.Error(err))
			}
			return
		}
		if !t.alive.Load() {
			return
		}
		t.modify(postID, func(p *model.Post) { p.User = author })
	}()
}

func (t *Timeline) modify(postID string, fn func(p *model.Post)) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	idx := t.indexLocked(postID)
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	fn(&t.posts[idx])
	updated := t.posts[idx]
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeUpsert, Post: updated})
}

func (t *Timeline) removePost(postID string) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	idx := t.indexLocked(postID)
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	removed := t.posts[idx]
	t.posts = append(t.posts[:idx], t.posts[idx+1:]...)
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeRemove, Post: removed})
}

// Close discards later results and cancels author lookups in flight.
func (t *Timeline) Close() {
	if !t.alive.CompareAndSwap(true, false) {
		return
	}
	t.bgMu.Lock()
	t.bgMu.Unlock() //nolint:staticcheck
	t.cancel()
	t.wg.Wait()
}

func (t *Timeline) notify(c Change) {
	for _, fn := range t.observers {
		fn(c)
	}
}

func (t *Timeline) indexLocked(id string) int {
	for i := range t.posts {
		if t.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) snapshotLocked() []model.Post {
	out := make([]model.Post, len(t.posts))
	copy(out, t.posts)
	return out
}

func removeComment(list []model.Comment, id string) []model.Comment {
	out := list[:0:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func removeLike(list []model.Like, id string) []model.Like {
	out := list[:0:0]
	for _, l := range list {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}
