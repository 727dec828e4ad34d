// Package chat keeps one conversation's message list consistent across
// history loads, optimistic sends and pushed changes.
package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// DefaultPageSize is the history page size when Load gets no limit.
const DefaultPageSize = 50

const readAckTimeout = 10 * time.Second

// Messages is the backend surface a stream needs.
type Messages interface {
	// List returns a page of messages, newest first.
	List(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	Send(ctx context.Context, draft model.Draft) (*model.Message, error)
	MarkRead(ctx context.Context, conversationID, viewerID string) error
}

// ChangeKind describes a buffer change.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// Change is delivered to observers after the buffer changed.
type Change struct {
	Kind    ChangeKind    `json:"kind"`
	Message model.Message `json:"message"`
}

// Observer receives buffer changes in the order they were applied. It must
// not call back into the stream.
type Observer func(Change)

// Option configures a Stream.
type Option func(*Stream)

// WithReadHook sets fn to run after the viewer's inbound messages in the
// conversation were acknowledged as read.
func WithReadHook(fn func(conversationID string)) Option {
	return func(s *Stream) { s.onRead = fn }
}

// WithObserver registers an observer at construction.
func WithObserver(fn Observer) Option {
	return func(s *Stream) { s.observers = append(s.observers, fn) }
}

// Stream is the message list of one conversation as seen by one viewer.
type Stream struct {
	conversationID string
	viewerID       string
	messages       Messages
	logger         *logger.Logger
	now            func() time.Time

	mu  sync.Mutex
	buf buffer

	// notifyMu serializes observer delivery with buffer changes.
	notifyMu  sync.Mutex
	observers []Observer
	onRead    func(conversationID string)

	alive  atomic.Bool
	ackMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a stream for conversationID seen by viewerID.
func NewStream(conversationID, viewerID string, messages Messages, log *logger.Logger, opts ...Option) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		conversationID: conversationID,
		viewerID:       viewerID,
		messages:       messages,
		logger: log.Named("chat").With(
			zap.String("conversation_id", conversationID),
			zap.String("viewer_id", viewerID),
		),
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.alive.Store(true)
	return s
}

// ConversationID returns the stream's conversation.
func (s *Stream) ConversationID() string { return s.conversationID }

// Observe registers fn for subsequent changes.
func (s *Stream) Observe(fn Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Load fetches the newest limit messages after skipping offset and merges
// them into the buffer. The page is returned oldest first. A successful load
// acknowledges the viewer's inbound messages as read.
func (s *Stream) Load(ctx context.Context, limit, offset int) ([]model.Message, error) {
	if !s.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	page, err := s.messages.List(ctx, s.conversationID, limit, offset)
	if err != nil {
		s.logger.Warn("history load failed", zap.Int("offset", offset), zap.Error(err))
		return nil, apperrors.ErrLoadFailed(err)
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	if !s.alive.Load() {
		return page, nil
	}
	for _, msg := range page {
		s.apply(msg, false)
	}

	// The viewer has seen the history, so the local count resets even when
	// the backend acknowledgement fails.
	if err := s.messages.MarkRead(ctx, s.conversationID, s.viewerID); err != nil {
		s.logger.Warn("mark read after load failed", zap.Error(err))
	}
	if s.onRead != nil && s.alive.Load() {
		s.onRead(s.conversationID)
	}
	return page, nil
}

// Send shows the draft immediately as a provisional entry, persists it and
// then confirms or removes that entry. Drafts without text or attachments
// are rejected before any I/O. Failed sends are not retried.
func (s *Stream) Send(ctx context.Context, draft model.Draft) (*model.Message, error) {
	if !s.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	if draft.ConversationID == "" {
		draft.ConversationID = s.conversationID
	}
	if draft.ConversationID != s.conversationID {
		return nil, apperrors.Validation("draft belongs to another conversation")
	}
	draft.SenderID = s.viewerID
	if draft.Empty() {
		return nil, apperrors.ErrEmptyMessage
	}
	if draft.ClientID == "" {
		draft.ClientID = uuid.NewString()
	}

	provisional := model.Message{
		ID:             model.PendingIDPrefix + draft.ClientID,
		ClientID:       draft.ClientID,
		ConversationID: s.conversationID,
		SenderID:       s.viewerID,
		Body:           draft.Body,
		CreatedAt:      s.now(),
		Pending:        true,
	}
	for _, up := range draft.Attachments {
		provisional.Attachments = append(provisional.Attachments, model.Attachment{
			Type: up.Type,
			Name: up.Name,
			Size: int64(len(up.Data)),
		})
	}
	s.apply(provisional, false)

	confirmed, err := s.messages.Send(ctx, draft)
	metrics.RecordSend(err)
	if err != nil {
		s.rollback(draft.ClientID)
		s.logger.Warn("send failed", zap.String("client_id", draft.ClientID), zap.Error(err))
		return nil, apperrors.ErrSendFailed(err)
	}

	if s.alive.Load() {
		s.apply(*confirmed, false)
	}
	return confirmed, nil
}

// OnInbound merges a pushed new message. Messages for other conversations
// and repeats are ignored. Unread messages from the other participant are
// acknowledged in the background.
func (s *Stream) OnInbound(msg model.Message) {
	if !s.alive.Load() || msg.ConversationID != s.conversationID {
		return
	}
	msg.Pending = false
	s.apply(msg, false)

	if msg.SenderID != s.viewerID && !msg.Read {
		s.ackRead()
	}
}

// OnUpdate merges a pushed change to a message already in the buffer.
func (s *Stream) OnUpdate(msg model.Message) {
	if !s.alive.Load() || msg.ConversationID != s.conversationID {
		return
	}
	msg.Pending = false
	s.apply(msg, true)
}

// Snapshot returns the current buffer.
func (s *Stream) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.snapshot()
}

// Close stops the stream. Results that arrive afterwards are discarded and
// pending read acknowledgements are cancelled.
func (s *Stream) Close() {
	if !s.alive.CompareAndSwap(true, false) {
		return
	}
	// No acknowledgement can be scheduled once this lock was taken.
	s.ackMu.Lock()
	s.ackMu.Unlock() //nolint:staticcheck
	s.cancel()
	s.wg.Wait()
}

// Alive reports whether the stream is still open.
func (s *Stream) Alive() bool {
	return s.alive.Load()
}

func (s *Stream) apply(msg model.Message, onlyKnown bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	var (
		merged  model.Message
		changed bool
	)
	if onlyKnown {
		merged, changed = s.buf.update(msg)
	} else {
		merged, changed = s.buf.upsert(msg)
	}
	s.mu.Unlock()

	if changed {
		s.notify(Change{Kind: ChangeUpsert, Message: merged})
	}
}

func (s *Stream) rollback(clientID string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	removed, ok := s.buf.removePending(clientID)
	s.mu.Unlock()

	if ok {
		s.notify(Change{Kind: ChangeRemove, Message: removed})
	}
}

func (s *Stream) notify(c Change) {
	for _, fn := range s.observers {
		fn(c)
	}
}

func (s *Stream) ackRead() {
	s.ackMu.Lock()
	if !s.alive.Load() {
		s.ackMu.Unlock()
		return
	}
	s.wg.Add(1)
	s.ackMu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, readAckTimeout)
		defer cancel()

		if err := s.messages.MarkRead(ctx, s.conversationID, s.viewerID); err != nil {
			if s.alive.Load() {
				s.logger.Warn("read acknowledgement failed", zap.Error(err))
			}
			return
		}
		if s.onRead != nil && s.alive.Load() {
			s.onRead(s.conversationID)
		}
	}()
}
