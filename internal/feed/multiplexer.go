package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

const defaultQueueSize = 256

// Subscriber opens change-feed subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, filter model.Filter, fn backend.Handler) (backend.Subscription, error)
}

// Handler merges one change event into a component's local state. Handlers
// run on the multiplexer's dispatch goroutine, one at a time, and must not
// block on network I/O or call Close.
type Handler func(ev model.ChangeEvent)

type routeKey struct {
	table model.Table
	typ   model.EventType
}

type queued struct {
	ch *Channel
	ev model.ChangeEvent
}

// Multiplexer owns a screen's subscriptions. Events from all its channels
// go through a single queue, so events are applied in receipt order.
type Multiplexer struct {
	subscriber Subscriber
	logger     *logger.Logger

	mu       sync.Mutex
	routes   map[routeKey]Handler
	channels []*Channel

	queue      chan queued
	done       chan struct{}
	dispatchMu sync.Mutex
	closed     atomic.Bool
	closeOnce  sync.Once
}

// New creates a multiplexer and starts its dispatch loop.
func New(subscriber Subscriber, log *logger.Logger) *Multiplexer {
	m := &Multiplexer{
		subscriber: subscriber,
		logger:     log.Named("feed"),
		routes:     make(map[routeKey]Handler),
		queue:      make(chan queued, defaultQueueSize),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

// Route registers h for (table, typ). model.EventAny matches every type not
// routed explicitly.
func (m *Multiplexer) Route(table model.Table, typ model.EventType, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[routeKey{table: table, typ: typ}] = h
}

// Open subscribes a new channel. On failure the channel is returned in
// StateError together with a subscription error; the caller keeps working
// from its last snapshot.
func (m *Multiplexer) Open(ctx context.Context, name string, filter model.Filter) (*Channel, error) {
	if m.closed.Load() {
		return nil, apperrors.ErrSessionClosed
	}

	ch := &Channel{name: name, filter: filter}
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()

	ch.begin()
	sub, err := m.subscriber.Subscribe(ctx, filter, func(ev model.ChangeEvent) {
		m.enqueue(ch, ev)
	})
	if err != nil {
		ch.fail(err)
		metrics.FeedSubscriptionErrors.WithLabelValues(string(filter.Table)).Inc()
		m.logger.Warn("subscription failed",
			zap.String("channel", name),
			zap.String("table", string(filter.Table)),
			zap.Error(err),
		)
		return ch, apperrors.Subscription(fmt.Sprintf("could not subscribe to %s", name), err)
	}

	if !ch.activate(sub) || m.closed.Load() {
		_ = ch.stop()
		return ch, apperrors.ErrSessionClosed
	}

	m.logger.Debug("subscription active",
		zap.String("channel", name),
		zap.String("table", string(filter.Table)),
		zap.String("column", filter.Column),
	)
	return ch, nil
}

// Channels returns the channels opened so far.
func (m *Multiplexer) Channels() []*Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Channel(nil), m.channels...)
}

func (m *Multiplexer) enqueue(ch *Channel, ev model.ChangeEvent) {
	if m.closed.Load() || !ch.delivering() {
		return
	}
	select {
	case m.queue <- queued{ch: ch, ev: ev}:
	case <-m.done:
	}
}

func (m *Multiplexer) run() {
	for {
		select {
		case q := <-m.queue:
			m.dispatch(q)
		case <-m.done:
			return
		}
	}
}

func (m *Multiplexer) dispatch(q queued) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	table, typ := string(q.ev.Table), string(q.ev.Type)
	if m.closed.Load() || !q.ch.delivering() {
		metrics.FeedEventsTotal.WithLabelValues(table, typ, "discarded").Inc()
		return
	}

	m.mu.Lock()
	h, ok := m.routes[routeKey{table: q.ev.Table, typ: q.ev.Type}]
	if !ok {
		h, ok = m.routes[routeKey{table: q.ev.Table, typ: model.EventAny}]
	}
	m.mu.Unlock()

	if !ok {
		metrics.FeedEventsTotal.WithLabelValues(table, typ, "unrouted").Inc()
		m.logger.Debug("no route for event", zap.String("table", table), zap.String("type", typ))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.FeedEventsTotal.WithLabelValues(table, typ, "panic").Inc()
			m.logger.Error("event handler panicked",
				zap.String("table", table),
				zap.String("type", typ),
				zap.Any("panic", r),
			)
		}
	}()
	h(q.ev)
	metrics.FeedEventsTotal.WithLabelValues(table, typ, "applied").Inc()
}

// Close tears down every channel and discards queued events. When Close
// returns no handler is running and none will run again. Close is
// idempotent.
func (m *Multiplexer) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.done)

		for _, ch := range m.Channels() {
			if err := ch.stop(); err != nil {
				m.logger.Warn("unsubscribe failed", zap.String("channel", ch.name), zap.Error(err))
			}
		}

		// Wait out a handler that was already running.
		m.dispatchMu.Lock()
		m.dispatchMu.Unlock() //nolint:staticcheck
	})
}

// Closed reports whether Close has been called.
func (m *Multiplexer) Closed() bool {
	return m.closed.Load()
}
