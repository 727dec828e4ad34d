package memory

import (
	"context"
	"sync"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

// Feed is an in-process change feed. Publish delivers synchronously to every
// matching subscriber, in publish order.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	feed   *Feed
	id     int
	filter model.Filter
	fn     backend.Handler
	once   sync.Once
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]*subscription)}
}

// Publish delivers ev to matching subscribers.
func (f *Feed) Publish(ctx context.Context, ev model.ChangeEvent) error {
	f.mu.RLock()
	targets := make([]*subscription, 0, len(f.subs))
	for _, s := range f.subs {
		if s.filter.Matches(&ev) {
			targets = append(targets, s)
		}
	}
	f.mu.RUnlock()

	for _, s := range targets {
		s.fn(ev)
	}
	return nil
}

// Subscribe registers fn for events matching filter.
func (f *Feed) Subscribe(ctx context.Context, filter model.Filter, fn backend.Handler) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	s := &subscription{feed: f, id: f.nextID, filter: filter, fn: fn}
	f.subs[s.id] = s
	return s, nil
}

// Subscribers returns the number of open subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
	})
	return nil
}
