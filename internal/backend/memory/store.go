// Package memory provides in-process implementations of the hosted backend
// parts. It backs tests and the single-node development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

// Store is an in-memory backend.Store.
type Store struct {
	mu sync.RWMutex

	conversations map[string]*model.Conversation
	pairs         map[string]string // canonical pair key -> conversation id
	messages      map[string][]*model.Message
	attachments   map[string][]model.Attachment // message id -> attachments
	profiles      map[string]*model.Profile
	posts         []*model.Post
	likes         map[string]*model.Like
	comments      map[string]*model.Comment
	follows       []*model.Follow
	notifications []*model.Notification
	jobs          []*model.Job
	jobLikes      map[string]*model.JobLike
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*model.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]*model.Message),
		attachments:   make(map[string][]model.Attachment),
		profiles:      make(map[string]*model.Profile),
		likes:         make(map[string]*model.Like),
		comments:      make(map[string]*model.Comment),
		jobLikes:      make(map[string]*model.JobLike),
	}
}

func pairKey(x, y string) string {
	a, b := model.CanonicalPair(x, y)
	return a + "\x00" + b
}

// FindConversation returns the conversation for the unordered pair {a,b}.
func (s *Store) FindConversation(ctx context.Context, a, b string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[pairKey(a, b)]
	if !ok {
		return nil, backend.ErrNotFound
	}
	conv := *s.conversations[id]
	return &conv, nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	out := *conv
	return &out, nil
}

// InsertConversation stores conv, enforcing one row per unordered pair.
func (s *Store) InsertConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(conv.UserAID, conv.UserBID)
	if _, exists := s.pairs[key]; exists {
		return backend.ErrConflict
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return backend.ErrConflict
	}

	stored := *conv
	s.conversations[conv.ID] = &stored
	s.pairs[key] = conv.ID
	return nil
}

// UpdateConversationLastMessage sets the denormalized last-message fields.
func (s *Store) UpdateConversationLastMessage(ctx context.Context, id, text, senderID string, at time.Time) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	conv.LastMessage = text
	conv.LastSenderID = senderID
	conv.LastMessageAt = at
	conv.UpdatedAt = at

	out := *conv
	return &out, nil
}

// ListUserConversations returns userID's conversations joined with the
// other participant's profile, most recently updated first.
func (s *Store) ListUserConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []model.ConversationSummary
	for _, conv := range s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		otherID := conv.Other(userID)
		other := model.Profile{ID: otherID}
		if p, ok := s.profiles[otherID]; ok {
			other = *p
		}
		list = append(list, model.ConversationSummary{
			ID:           conv.ID,
			OtherUser:    other,
			LastMessage:  conv.LastMessage,
			LastSenderID: conv.LastSenderID,
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// InsertMessage appends a message to its conversation.
func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return backend.ErrNotFound
	}
	for _, m := range s.messages[msg.ConversationID] {
		if m.ID == msg.ID {
			return backend.ErrConflict
		}
	}

	stored := *msg
	stored.Attachments = nil
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &stored)
	if len(msg.Attachments) > 0 {
		s.attachments[msg.ID] = append([]model.Attachment(nil), msg.Attachments...)
	}
	return nil
}

// ListMessages returns up to limit messages after skipping offset, newest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[conversationID]
	// Stored in insertion order; walk backwards for newest first.
	out := make([]model.Message, 0, limit)
	skipped := 0
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if skipped < offset {
			skipped++
			continue
		}
		m := *all[i]
		m.Attachments = append([]model.Attachment(nil), s.attachments[m.ID]...)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkMessagesRead flags unread inbound messages of viewerID.
func (s *Store) MarkMessagesRead(ctx context.Context, conversationID, viewerID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []model.Message
	for _, m := range s.messages[conversationID] {
		if m.SenderID == viewerID || m.Read {
			continue
		}
		m.Read = true
		changed = append(changed, *m)
	}
	return changed, nil
}

// GetProfile returns a profile by user id.
func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	out := *p
	for _, f := range s.follows {
		if f.FolloweeID == id {
			out.FollowerCount++
		}
		if f.FollowerID == id {
			out.FollowingCount++
		}
	}
	return &out, nil
}

// UpsertProfile creates or replaces a profile.
func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	stored.FollowerCount, stored.FollowingCount = 0, 0
	s.profiles[p.ID] = &stored
	return nil
}

// ListPosts returns a page of posts, newest first, optionally by one author.
func (s *Store) ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Post
	for i := len(s.posts) - 1; i >= 0; i-- {
		if userID != "" && s.posts[i].UserID != userID {
			continue
		}
		matched = append(matched, s.posts[i])
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]model.Post, 0, end-offset)
	for _, p := range matched[offset:end] {
		out = append(out, s.joinPost(p))
	}
	return out, nil
}

func (s *Store) joinPost(p *model.Post) model.Post {
	post := *p
	if author, ok := s.profiles[p.UserID]; ok {
		a := *author
		post.User = &a
	}
	post.Likes = []model.Like{}
	for _, l := range s.likes {
		if l.PostID == p.ID {
			post.Likes = append(post.Likes, *l)
		}
	}
	sort.Slice(post.Likes, func(i, j int) bool { return post.Likes[i].ID < post.Likes[j].ID })
	post.Comments = []model.Comment{}
	for _, c := range s.comments {
		if c.PostID == p.ID {
			post.Comments = append(post.Comments, *c)
		}
	}
	sort.Slice(post.Comments, func(i, j int) bool {
		return post.Comments[i].CreatedAt.After(post.Comments[j].CreatedAt)
	})
	return post
}

// InsertPost stores a post.
func (s *Store) InsertPost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	stored.User, stored.Likes, stored.Comments = nil, nil, nil
	s.posts = append(s.posts, &stored)
	return nil
}

// DeletePost removes userID's post with its likes and comments.
func (s *Store) DeletePost(ctx context.Context, id, userID string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.posts {
		if p.ID != id || p.UserID != userID {
			continue
		}
		s.posts = append(s.posts[:i], s.posts[i+1:]...)
		for lid, l := range s.likes {
			if l.PostID == id {
				delete(s.likes, lid)
			}
		}
		for cid, c := range s.comments {
			if c.PostID == id {
				delete(s.comments, cid)
			}
		}
		return p, nil
	}
	return nil, backend.ErrNotFound
}

// InsertLike stores a like; one per user and post.
func (s *Store) InsertLike(ctx context.Context, l *model.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPost(l.PostID) {
		return backend.ErrNotFound
	}
	for _, existing := range s.likes {
		if existing.PostID == l.PostID && existing.UserID == l.UserID {
			return backend.ErrConflict
		}
	}
	stored := *l
	s.likes[l.ID] = &stored
	return nil
}

// DeleteLike removes userID's like of postID.
func (s *Store) DeleteLike(ctx context.Context, postID, userID string) (*model.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range s.likes {
		if l.PostID == postID && l.UserID == userID {
			delete(s.likes, id)
			return l, nil
		}
	}
	return nil, backend.ErrNotFound
}

// InsertComment stores a comment.
func (s *Store) InsertComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPost(c.PostID) {
		return backend.ErrNotFound
	}
	stored := *c
	s.comments[c.ID] = &stored
	return nil
}

// DeleteComment removes userID's comment.
func (s *Store) DeleteComment(ctx context.Context, id, userID string) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return nil, backend.ErrNotFound
	}
	delete(s.comments, id)
	return c, nil
}

// GetPost returns a post with author, likes and comments.
func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		if p.ID == id {
			out := s.joinPost(p)
			return &out, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (s *Store) hasPost(id string) bool {
	for _, p := range s.posts {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}
