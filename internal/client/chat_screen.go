package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/chat"
	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// ChatScreen is a mounted conversation: a message stream fed by its own
// change-feed subscription.
type ChatScreen struct {
	id       string
	client   *Client
	stream   *chat.Stream
	mux      *feed.Multiplexer
	logger   *logger.Logger
	pageSize int

	closeOnce sync.Once
}

func openChat(ctx context.Context, c *Client, conversationID string) (*ChatScreen, error) {
	pageSize := c.deps.MessagePageSize
	if pageSize <= 0 {
		pageSize = chat.DefaultPageSize
	}

	id := uuid.NewString()
	log := c.logger.With(zap.String("session_id", id), zap.String("conversation_id", conversationID))
	s := &ChatScreen{
		id:       id,
		client:   c,
		stream:   chat.NewStream(conversationID, c.viewerID, c.deps.Messages, c.deps.Logger, c.chatOptions()...),
		mux:      feed.New(c.deps.Feed, log),
		logger:   log,
		pageSize: pageSize,
	}

	s.mux.Route(model.TableMessages, model.EventInsert, s.onInsert)
	s.mux.Route(model.TableMessages, model.EventUpdate, s.onUpdate)

	c.tracker.Focus(conversationID)
	metrics.SessionsActive.WithLabelValues("chat").Inc()

	// Subscribe before loading so nothing committed in between is missed;
	// the buffer dedupes the overlap.
	filter := model.Filter{Table: model.TableMessages, Event: model.EventAny, Column: "conversation_id", Value: conversationID}
	if _, err := s.mux.Open(ctx, "chat:"+conversationID, filter); err != nil {
		s.logger.Warn("chat screen has no live updates", zap.Error(err))
	}

	if _, err := s.stream.Load(ctx, pageSize, 0); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *ChatScreen) ID() string { return s.id }

// Kind returns "chat".
func (s *ChatScreen) Kind() string { return "chat" }

// ViewerID returns the screen's viewer.
func (s *ChatScreen) ViewerID() string { return s.client.viewerID }

// ConversationID returns the open conversation.
func (s *ChatScreen) ConversationID() string { return s.stream.ConversationID() }

// Stream returns the screen's message stream.
func (s *ChatScreen) Stream() *chat.Stream { return s.stream }

// Channels returns the screen's feed channels.
func (s *ChatScreen) Channels() []*feed.Channel { return s.mux.Channels() }

// Messages returns the current buffer.
func (s *ChatScreen) Messages() []model.Message { return s.stream.Snapshot() }

// Send sends a draft through the optimistic path.
func (s *ChatScreen) Send(ctx context.Context, draft model.Draft) (*model.Message, error) {
	return s.stream.Send(ctx, draft)
}

// LoadOlder fetches the page before the confirmed messages already shown.
func (s *ChatScreen) LoadOlder(ctx context.Context) ([]model.Message, error) {
	confirmed := 0
	for _, m := range s.stream.Snapshot() {
		if !m.Pending {
			confirmed++
		}
	}
	return s.stream.Load(ctx, s.pageSize, confirmed)
}

func (s *ChatScreen) onInsert(ev model.ChangeEvent) {
	var msg model.Message
	if err := ev.DecodeNew(&msg); err != nil {
		s.logger.Warn("undecodable message event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	s.stream.OnInbound(msg)
}

func (s *ChatScreen) onUpdate(ev model.ChangeEvent) {
	var msg model.Message
	if err := ev.DecodeNew(&msg); err != nil {
		s.logger.Warn("undecodable message event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	s.stream.OnUpdate(msg)
}

// Close unmounts the screen. It must not be called from a feed handler.
func (s *ChatScreen) Close() {
	s.closeOnce.Do(func() {
		s.mux.Close()
		s.stream.Close()
		s.client.tracker.Blur(s.stream.ConversationID())
		metrics.SessionsActive.WithLabelValues("chat").Dec()
	})
}
