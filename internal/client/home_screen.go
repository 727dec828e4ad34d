package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/timeline"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// HomeScreen is a mounted post feed.
type HomeScreen struct {
	id       string
	client   *Client
	timeline *timeline.Timeline
	mux      *feed.Multiplexer
	logger   *logger.Logger

	closeOnce sync.Once
}

func openHome(ctx context.Context, c *Client, authorID string) (*HomeScreen, error) {
	id := uuid.NewString()
	log := c.logger.With(zap.String("session_id", id))
	s := &HomeScreen{
		id:       id,
		client:   c,
		timeline: timeline.New(c.deps.Posts, c.deps.PostPageSize, authorID, c.deps.Logger),
		mux:      feed.New(c.deps.Feed, log),
		logger:   log,
	}
	metrics.SessionsActive.WithLabelValues("home").Inc()

	for _, table := range []model.Table{model.TablePosts, model.TableComments, model.TableLikes} {
		s.mux.Route(table, model.EventAny, s.apply)
		filter := model.Filter{Table: table, Event: model.EventAny}
		if _, err := s.mux.Open(ctx, "home:"+string(table), filter); err != nil {
			s.logger.Warn("home screen has no live updates", zap.String("table", string(table)), zap.Error(err))
		}
	}

	if _, err := s.timeline.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *HomeScreen) ID() string { return s.id }

// Kind returns "home".
func (s *HomeScreen) Kind() string { return "home" }

// ViewerID returns the screen's viewer.
func (s *HomeScreen) ViewerID() string { return s.client.viewerID }

// Timeline returns the screen's timeline.
func (s *HomeScreen) Timeline() *timeline.Timeline { return s.timeline }

// Channels returns the screen's feed channels.
func (s *HomeScreen) Channels() []*feed.Channel { return s.mux.Channels() }

// LoadMore appends the next page of posts.
func (s *HomeScreen) LoadMore(ctx context.Context) ([]model.Post, error) {
	return s.timeline.LoadMore(ctx)
}

func (s *HomeScreen) apply(ev model.ChangeEvent) {
	if err := s.timeline.Apply(ev); err != nil {
		s.logger.Warn("could not apply feed event",
			zap.String("event_id", ev.ID),
			zap.String("table", string(ev.Table)),
			zap.Error(err),
		)
	}
}

// Close unmounts the screen. It must not be called from a feed handler.
func (s *HomeScreen) Close() {
	s.closeOnce.Do(func() {
		s.mux.Close()
		s.timeline.Close()
		metrics.SessionsActive.WithLabelValues("home").Dec()
	})
}
