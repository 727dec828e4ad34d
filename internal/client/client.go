// Package client binds the sync components into per-viewer sessions: the
// inbox with unread counts and people lists, and the mounted chat, home and
// job screens.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/chat"
	"github.com/workhub-social/chatsync/internal/directory"
	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/internal/unread"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

const refetchTimeout = 10 * time.Second

// Deps are the collaborators shared by every client.
type Deps struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Posts         *service.PostService
	People        *service.PeopleService
	Jobs          *service.JobService
	Feed          feed.Subscriber
	Logger        *logger.Logger

	MessagePageSize int
	PostPageSize    int
	JobPageSize     int
}

// InboxUpdate is delivered to inbox observers after the list, the unread
// counts or the people lists changed.
type InboxUpdate struct {
	Conversations       []model.ConversationSummary `json:"conversations"`
	TotalUnread         int                         `json:"total_unread"`
	UnreadNotifications int                         `json:"unread_notifications"`
	People              model.People                `json:"people"`
}

// Client is one viewer's view of their conversations.
type Client struct {
	viewerID string
	deps     Deps
	logger   *logger.Logger
	tracker  *unread.Tracker
	mux      *feed.Multiplexer

	mu            sync.Mutex
	inbox         []model.ConversationSummary
	people        model.People
	notifications int

	notifyMu  sync.Mutex
	observers map[int]func(InboxUpdate)
	nextObs   int

	refetching     atomic.Bool
	refetchPending atomic.Bool
	alive          atomic.Bool
	bgMu           sync.Mutex
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// New creates a client for viewerID. Call Start before use.
func New(viewerID string, deps Deps) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	log := deps.Logger.Named("client").With(zap.String("viewer_id", viewerID))
	c := &Client{
		viewerID:  viewerID,
		deps:      deps,
		logger:    log,
		tracker:   unread.NewTracker(viewerID),
		mux:       feed.New(deps.Feed, log),
		observers: make(map[int]func(InboxUpdate)),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.alive.Store(true)
	return c
}

// ViewerID returns the viewer.
func (c *Client) ViewerID() string { return c.viewerID }

// Tracker returns the viewer's unread tracker.
func (c *Client) Tracker() *unread.Tracker { return c.tracker }

// Start loads the conversation list, the people lists and the unread
// notification count, then subscribes to the viewer's inbound messages,
// conversation rows, follows, notifications and profile changes.
// Subscription failures are logged and leave the lists at their loaded state.
func (c *Client) Start(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	if err := c.refreshPeople(ctx); err != nil {
		return err
	}

	c.mux.Route(model.TableMessages, model.EventInsert, c.onMessage)
	c.mux.Route(model.TableMessages, model.EventUpdate, c.onMessageUpdate)
	c.mux.Route(model.TableConversations, model.EventAny, c.onConversation)
	c.mux.Route(model.TableProfiles, model.EventUpdate, c.onProfile)
	c.mux.Route(model.TableFollows, model.EventInsert, c.onFollow)
	c.mux.Route(model.TableFollows, model.EventDelete, c.onFollow)
	c.mux.Route(model.TableNotifications, model.EventInsert, c.onNotification)
	c.mux.Route(model.TableNotifications, model.EventUpdate, c.onNotificationUpdate)

	channels := []struct {
		name   string
		filter model.Filter
	}{
		{"inbox:messages", model.Filter{Table: model.TableMessages, Event: model.EventAny, Column: "receiver_id", Value: c.viewerID}},
		{"inbox:conversations-a", model.Filter{Table: model.TableConversations, Event: model.EventAny, Column: "user_a_id", Value: c.viewerID}},
		{"inbox:conversations-b", model.Filter{Table: model.TableConversations, Event: model.EventAny, Column: "user_b_id", Value: c.viewerID}},
		{"inbox:profiles", model.Filter{Table: model.TableProfiles, Event: model.EventUpdate}},
		{"inbox:followers", model.Filter{Table: model.TableFollows, Event: model.EventAny, Column: "followee_id", Value: c.viewerID}},
		{"inbox:following", model.Filter{Table: model.TableFollows, Event: model.EventAny, Column: "follower_id", Value: c.viewerID}},
		{"inbox:notifications", model.Filter{Table: model.TableNotifications, Event: model.EventAny, Column: "receiver_id", Value: c.viewerID}},
	}
	for _, ch := range channels {
		if _, err := c.mux.Open(ctx, ch.name, ch.filter); err != nil {
			if apperrors.HasCode(err, apperrors.CodeInternal) {
				return err
			}
			// Already logged by the multiplexer; the list stays usable.
			continue
		}
	}
	return nil
}

// Channels returns the inbox channels and their states.
func (c *Client) Channels() []*feed.Channel {
	return c.mux.Channels()
}

// Conversations returns the current list with live unread counts, along
// with the people lists and the unread notification count.
func (c *Client) Conversations() InboxUpdate {
	c.mu.Lock()
	update := InboxUpdate{
		Conversations:       directory.WithUnread(c.inbox, c.tracker.Snapshot()),
		UnreadNotifications: c.notifications,
		People:              c.people,
	}
	c.mu.Unlock()
	update.TotalUnread = c.tracker.Total()
	return update
}

// People returns the viewer's followers and followees.
func (c *Client) People() model.People {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.people
}

// UnreadNotifications returns the live unread notification count.
func (c *Client) UnreadNotifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifications
}

// Observe registers fn for inbox changes and returns a function removing it.
func (c *Client) Observe(fn func(InboxUpdate)) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.observers, id)
	}
}

// Refresh reloads the lists and the unread counts from the backend.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	if err := c.refreshPeople(ctx); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Client) refreshPeople(ctx context.Context) error {
	people, err := c.deps.People.People(ctx, c.viewerID)
	if err != nil {
		return err
	}
	unread, err := c.deps.People.UnreadNotifications(ctx, c.viewerID)
	if err != nil {
		return err
	}
	if !c.alive.Load() {
		return apperrors.ErrSessionClosed
	}

	c.mu.Lock()
	c.people = *people
	c.notifications = unread
	c.mu.Unlock()
	return nil
}

func (c *Client) refresh(ctx context.Context) error {
	resp, err := c.deps.Conversations.List(ctx, c.viewerID)
	if err != nil {
		return err
	}
	if !c.alive.Load() {
		return apperrors.ErrSessionClosed
	}

	c.mu.Lock()
	c.inbox = resp.Conversations
	c.mu.Unlock()
	c.tracker.Seed(resp.Conversations)
	return nil
}

func (c *Client) onMessage(ev model.ChangeEvent) {
	var msg model.Message
	if err := ev.DecodeNew(&msg); err != nil {
		c.logger.Warn("undecodable message event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	c.tracker.OnInbound(&msg)

	c.mu.Lock()
	list, known := directory.ApplyMessage(c.inbox, &msg)
	c.inbox = list
	c.mu.Unlock()

	// A reload in flight may have read the counts before this message.
	if !known || c.refetching.Load() {
		c.refetch()
		return
	}
	c.publish()
}

// onMessageUpdate follows reads done elsewhere, e.g. on another device.
func (c *Client) onMessageUpdate(ev model.ChangeEvent) {
	var msg model.Message
	if err := ev.DecodeNew(&msg); err != nil {
		c.logger.Warn("undecodable message event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if !msg.Read || msg.ReceiverID != c.viewerID {
		return
	}
	c.tracker.Decrement(msg.ConversationID, 1)
	c.publish()
}

func (c *Client) onConversation(ev model.ChangeEvent) {
	var conv model.Conversation
	if err := ev.DecodeNew(&conv); err != nil {
		c.logger.Warn("undecodable conversation event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	c.mu.Lock()
	list, known := directory.ApplyConversation(c.inbox, &conv)
	c.inbox = list
	c.mu.Unlock()

	if !known {
		c.refetch()
		return
	}
	c.publish()
}

func (c *Client) onProfile(ev model.ChangeEvent) {
	var p model.Profile
	if err := ev.DecodeNew(&p); err != nil {
		c.logger.Warn("undecodable profile event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	c.mu.Lock()
	c.inbox = directory.ApplyProfile(c.inbox, &p)
	c.people = directory.ApplyPeopleProfile(c.people, &p)
	c.mu.Unlock()
	c.publish()
}

func (c *Client) onFollow(ev model.ChangeEvent) {
	var f model.Follow
	decode := ev.DecodeNew
	if ev.Type == model.EventDelete {
		decode = ev.DecodeOld
	}
	if err := decode(&f); err != nil {
		c.logger.Warn("undecodable follow event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	c.mu.Lock()
	c.people = directory.ApplyFollow(c.people, c.viewerID, &f, ev.Type == model.EventInsert)
	c.mu.Unlock()
	c.publish()
}

func (c *Client) onNotification(ev model.ChangeEvent) {
	var n model.Notification
	if err := ev.DecodeNew(&n); err != nil {
		c.logger.Warn("undecodable notification event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if n.ReceiverID != c.viewerID || n.Read {
		return
	}
	c.mu.Lock()
	c.notifications++
	c.mu.Unlock()
	c.publish()
}

// onNotificationUpdate follows reads done elsewhere.
func (c *Client) onNotificationUpdate(ev model.ChangeEvent) {
	var n model.Notification
	if err := ev.DecodeNew(&n); err != nil {
		c.logger.Warn("undecodable notification event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if !n.Read || n.ReceiverID != c.viewerID {
		return
	}
	c.mu.Lock()
	if c.notifications > 0 {
		c.notifications--
	}
	c.mu.Unlock()
	c.publish()
}

// refetch reloads the list in the background. At most one reload runs at a
// time; a request made while one runs triggers another pass after it, so a
// reload that read the backend too early is not the last word.
func (c *Client) refetch() {
	c.refetchPending.Store(true)
	if !c.refetching.CompareAndSwap(false, true) {
		return
	}
	c.bgMu.Lock()
	if !c.alive.Load() {
		c.bgMu.Unlock()
		c.refetching.Store(false)
		return
	}
	c.wg.Add(1)
	c.bgMu.Unlock()

	go func() {
		defer c.wg.Done()

		for c.refetchPending.Swap(false) {
			ctx, cancel := context.WithTimeout(c.ctx, refetchTimeout)
			err := c.refresh(ctx)
			cancel()
			if err != nil {
				if c.alive.Load() {
					c.logger.Warn("conversation list refetch failed", zap.Error(err))
				}
				continue
			}
			c.publish()
		}
		c.refetching.Store(false)
		if c.refetchPending.Load() {
			c.refetch()
		}
	}()
}

func (c *Client) publish() {
	if !c.alive.Load() {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	update := c.Conversations()
	for _, fn := range c.observers {
		fn(update)
	}
}

// OpenChat mounts a chat screen for a conversation the viewer takes part in.
func (c *Client) OpenChat(ctx context.Context, conversationID string) (*ChatScreen, error) {
	if !c.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	if _, err := c.deps.Conversations.Get(ctx, c.viewerID, conversationID); err != nil {
		return nil, err
	}
	return openChat(ctx, c, conversationID)
}

// OpenHome mounts a home screen. A non-empty authorID shows one user's posts.
func (c *Client) OpenHome(ctx context.Context, authorID string) (*HomeScreen, error) {
	if !c.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	return openHome(ctx, c, authorID)
}

// OpenJobs mounts a job board narrowed by q.
func (c *Client) OpenJobs(ctx context.Context, q model.JobQuery) (*JobsScreen, error) {
	if !c.alive.Load() {
		return nil, apperrors.ErrSessionClosed
	}
	return openJobs(ctx, c, q)
}

// Close unsubscribes the inbox and stops background work.
func (c *Client) Close() {
	if !c.alive.CompareAndSwap(true, false) {
		return
	}
	c.mux.Close()
	c.bgMu.Lock()
	c.bgMu.Unlock() //nolint:staticcheck
	c.cancel()
	c.wg.Wait()
	c.logger.Debug("client closed")
}

func (c *Client) onChatRead(conversationID string) {
	c.tracker.Reset(conversationID)
	c.publish()
}

func (c *Client) chatOptions() []chat.Option {
	return []chat.Option{chat.WithReadHook(c.onChatRead)}
}
