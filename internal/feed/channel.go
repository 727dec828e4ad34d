// Package feed multiplexes change-feed subscriptions for one screen and
// routes their events to the components that merge them into local state.
package feed

import (
	"sync"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// State is the lifecycle state of a channel.
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateActive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one filtered subscription owned by a Multiplexer.
type Channel struct {
	name   string
	filter model.Filter

	mu    sync.Mutex
	state State
	sub   backend.Subscription
	err   error
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Filter returns the channel filter.
func (c *Channel) Filter() model.Filter { return c.filter }

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the channel to StateError.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// begin transitions Idle -> Subscribing. It fails if the channel already left Idle.
func (c *Channel) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false
	}
	c.state = StateSubscribing
	return true
}

// activate transitions Subscribing -> Active. If the channel was stopped
// while subscribing, the fresh subscription is torn down instead.
func (c *Channel) activate(sub backend.Subscription) bool {
	c.mu.Lock()
	if c.state != StateSubscribing {
		c.mu.Unlock()
		_ = sub.Unsubscribe()
		return false
	}
	c.state = StateActive
	c.sub = sub
	c.mu.Unlock()

	metrics.FeedSubscriptionsActive.Inc()
	return true
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = StateError
	c.err = err
}

// stop tears the subscription down. Safe to call repeatedly.
func (c *Channel) stop() error {
	c.mu.Lock()
	prev := c.state
	sub := c.sub
	c.state = StateClosed
	c.sub = nil
	c.mu.Unlock()

	if prev == StateActive {
		metrics.FeedSubscriptionsActive.Dec()
	}
	if sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}

func (c *Channel) delivering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive || c.state == StateSubscribing
}
