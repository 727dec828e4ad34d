package memory

import (
	"context"
	"sort"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

// InsertFollow stores a follow; one per ordered pair.
func (s *Store) InsertFollow(ctx context.Context, f *model.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.follows {
		if existing.FollowerID == f.FollowerID && existing.FolloweeID == f.FolloweeID {
			return backend.ErrConflict
		}
	}
	stored := *f
	stored.Follower, stored.Followee = nil, nil
	s.follows = append(s.follows, &stored)
	return nil
}

// DeleteFollow removes the follow of followeeID by followerID.
func (s *Store) DeleteFollow(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.follows {
		if f.FollowerID == followerID && f.FolloweeID == followeeID {
			s.follows = append(s.follows[:i], s.follows[i+1:]...)
			return f, nil
		}
	}
	return nil, backend.ErrNotFound
}

// ListPeople returns userID's followers and followees, newest first.
func (s *Store) ListPeople(ctx context.Context, userID string) (*model.People, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &model.People{Followers: []model.Profile{}, Following: []model.Profile{}}
	for i := len(s.follows) - 1; i >= 0; i-- {
		f := s.follows[i]
		switch userID {
		case f.FolloweeID:
			out.Followers = append(out.Followers, s.profileOrStub(f.FollowerID))
		case f.FollowerID:
			out.Following = append(out.Following, s.profileOrStub(f.FolloweeID))
		}
	}
	return out, nil
}

func (s *Store) profileOrStub(id string) model.Profile {
	if p, ok := s.profiles[id]; ok {
		return *p
	}
	return model.Profile{ID: id}
}

// InsertNotification stores a notification.
func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	stored.Sender = nil
	s.notifications = append(s.notifications, &stored)
	return nil
}

// ListNotifications returns a page of receiverID's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, receiverID string, limit, offset int) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := *s.notifications[i]
		if n.ReceiverID != receiverID {
			continue
		}
		if p, ok := s.profiles[n.SenderID]; ok {
			sender := *p
			n.Sender = &sender
		}
		matched = append(matched, n)
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
	return append([]model.Notification{}, matched[offset:end]...), nil
}

// CountUnreadNotifications counts receiverID's unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context, receiverID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, note := range s.notifications {
		if note.ReceiverID == receiverID && !note.Read {
			n++
		}
	}
	return n, nil
}

// MarkNotificationsRead flags receiverID's unread notifications.
func (s *Store) MarkNotificationsRead(ctx context.Context, receiverID string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []model.Notification
	for _, n := range s.notifications {
		if n.ReceiverID != receiverID || n.Read {
			continue
		}
		n.Read = true
		changed = append(changed, *n)
	}
	return changed, nil
}
