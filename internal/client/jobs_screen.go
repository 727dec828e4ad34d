package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/jobs"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// JobsScreen is a mounted job board.
type JobsScreen struct {
	id     string
	client *Client
	board  *jobs.Board
	mux    *feed.Multiplexer
	logger *logger.Logger

	closeOnce sync.Once
}

func openJobs(ctx context.Context, c *Client, q model.JobQuery) (*JobsScreen, error) {
	id := uuid.NewString()
	log := c.logger.With(zap.String("session_id", id))
	s := &JobsScreen{
		id:     id,
		client: c,
		board:  jobs.New(c.deps.Jobs, c.deps.JobPageSize, q, c.deps.Logger),
		mux:    feed.New(c.deps.Feed, log),
		logger: log,
	}
	metrics.SessionsActive.WithLabelValues("jobs").Inc()

	for _, table := range []model.Table{model.TableJobs, model.TableJobLikes} {
		s.mux.Route(table, model.EventAny, s.apply)
		filter := model.Filter{Table: table, Event: model.EventAny}
		if _, err := s.mux.Open(ctx, "jobs:"+string(table), filter); err != nil {
			s.logger.Warn("jobs screen has no live updates", zap.String("table", string(table)), zap.Error(err))
		}
	}

	if _, err := s.board.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *JobsScreen) ID() string { return s.id }

// Kind returns "jobs".
func (s *JobsScreen) Kind() string { return "jobs" }

// ViewerID returns the screen's viewer.
func (s *JobsScreen) ViewerID() string { return s.client.viewerID }

// Board returns the screen's job board.
func (s *JobsScreen) Board() *jobs.Board { return s.board }

// Channels returns the screen's feed channels.
func (s *JobsScreen) Channels() []*feed.Channel { return s.mux.Channels() }

// LoadMore appends the next page of jobs.
func (s *JobsScreen) LoadMore(ctx context.Context) ([]model.Job, error) {
	return s.board.LoadMore(ctx)
}

func (s *JobsScreen) apply(ev model.ChangeEvent) {
	if err := s.board.Apply(ev); err != nil {
		s.logger.Warn("could not apply feed event",
			zap.String("event_id", ev.ID),
			zap.String("table", string(ev.Table)),
			zap.Error(err),
		)
	}
}

// Close unmounts the screen. It must not be called from a feed handler.
func (s *JobsScreen) Close() {
	s.closeOnce.Do(func() {
		s.mux.Close()
		s.board.Close()
		metrics.SessionsActive.WithLabelValues("jobs").Dec()
	})
}
