package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/backend/memory"
	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/service"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type harness struct {
	deps  Deps
	parts *memory.Parts
}

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type brokenBlobs struct{}

func (brokenBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	return "", errors.New("storage down")
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithBlobs(t, nil)
}

// newHarnessWithBlobs swaps the blob store when blobs is not nil.
func newHarnessWithBlobs(t *testing.T, blobs backend.Blobs) *harness {
	t.Helper()
	log := logger.Nop()
	parts := &memory.Parts{
		Store:    memory.NewStore(),
		Counters: memory.NewCounters(),
		Feed:     memory.NewFeed(),
		Blobs:    memory.NewBlobs("mem://blobs"),
	}
	if blobs == nil {
		blobs = parts.Blobs
	}
	b := backend.NewHosted(parts.Store, parts.Counters, parts.Feed, blobs, log)
	ctx := context.Background()
	for _, p := range []model.Profile{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}, {ID: "carol", Name: "Carol"}} {
		p := p
		require.NoError(t, b.UpdateProfile(ctx, &p))
	}
	return &harness{
		deps: Deps{
			Conversations: service.NewConversationService(b, log),
			Messages:      service.NewMessageService(b, log),
			Posts:         service.NewPostService(b, log),
			People:        service.NewPeopleService(b, log),
			Jobs:          service.NewJobService(b, log),
			Feed:          b,
			Logger:        log,
		},
		parts: parts,
	}
}

func (h *harness) conversation(t *testing.T, a, b string) string {
	t.Helper()
	conv, err := h.deps.Conversations.GetOrCreate(context.Background(), a, b)
	require.NoError(t, err)
	return conv.ID
}

func (h *harness) send(t *testing.T, conversationID, from, text string) *model.Message {
	t.Helper()
	msg, err := h.deps.Messages.Send(context.Background(), model.Draft{ConversationID: conversationID, SenderID: from, Body: text})
	require.NoError(t, err)
	return msg
}

func (h *harness) start(t *testing.T, viewer string) *Client {
	t.Helper()
	c := New(viewer, h.deps)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func unreadOf(c *Client, conversationID string) int {
	for _, s := range c.Conversations().Conversations {
		if s.ID == conversationID {
			return s.UnreadCount
		}
	}
	return -1
}

func TestClient_StartSeedsUnreadCounts(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	h.send(t, conv, "bob", "one")
	h.send(t, conv, "bob", "two")
	h.send(t, conv, "alice", "mine")

	c := h.start(t, "alice")

	update := c.Conversations()
	require.Len(t, update.Conversations, 1)
	assert.Equal(t, 2, update.Conversations[0].UnreadCount)
	assert.Equal(t, 2, update.TotalUnread)
	assert.Equal(t, "mine", update.Conversations[0].LastMessage)
	assert.Equal(t, "Bob", update.Conversations[0].OtherUser.Name)

	for _, ch := range c.Channels() {
		assert.Equal(t, feed.StateActive, ch.State(), ch.Name())
	}
	assert.Len(t, c.Channels(), 7)
}

func TestClient_InboundMessageBumpsUnreadAndReorders(t *testing.T) {
	h := newHarness(t)
	withBob := h.conversation(t, "alice", "bob")
	withCarol := h.conversation(t, "alice", "carol")
	h.send(t, withBob, "alice", "hi bob")
	h.send(t, withCarol, "alice", "hi carol")

	c := h.start(t, "alice")
	updates := make(chan InboxUpdate, 16)
	remove := c.Observe(func(u InboxUpdate) {
		select {
		case updates <- u:
		default:
		}
	})
	defer remove()

	h.send(t, withBob, "bob", "hey")

	require.Eventually(t, func() bool { return unreadOf(c, withBob) == 1 }, waitFor, tick)
	list := c.Conversations().Conversations
	assert.Equal(t, withBob, list[0].ID)
	assert.Equal(t, "hey", list[0].LastMessage)
	assert.Equal(t, 1, c.Conversations().TotalUnread)
	assert.NotEmpty(t, updates)
}

func TestClient_OpenChatKeepsConversationRead(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	h.send(t, conv, "bob", "before")

	c := h.start(t, "alice")
	require.Equal(t, 1, unreadOf(c, conv))

	screen, err := c.OpenChat(context.Background(), conv)
	require.NoError(t, err)
	defer screen.Close()

	assert.Equal(t, 0, unreadOf(c, conv), "loading history reads the conversation")
	assert.True(t, c.Tracker().IsFocused(conv))
	require.Len(t, screen.Messages(), 1)

	h.send(t, conv, "bob", "while open")

	require.Eventually(t, func() bool { return len(screen.Messages()) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool {
		msgs, err := h.deps.Messages.List(context.Background(), conv, 10, 0)
		return err == nil && msgs[0].Read
	}, waitFor, tick)
	assert.Equal(t, 0, unreadOf(c, conv))

	screen.Close()
	assert.False(t, c.Tracker().IsFocused(conv))

	h.send(t, conv, "bob", "after close")
	require.Eventually(t, func() bool { return unreadOf(c, conv) == 1 }, waitFor, tick)
}

func TestClient_ChatSendIsOptimisticAndDeduped(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	c := h.start(t, "alice")

	screen, err := c.OpenChat(context.Background(), conv)
	require.NoError(t, err)
	defer screen.Close()

	msg, err := screen.Send(context.Background(), model.Draft{Body: "hello"})
	require.NoError(t, err)

	// Give the feed echo time to arrive; it must merge with the sent entry.
	time.Sleep(50 * time.Millisecond)
	msgs := screen.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestClient_UnknownConversationIsRefetched(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, "alice")
	require.Empty(t, c.Conversations().Conversations)

	conv := h.conversation(t, "carol", "alice")
	h.send(t, conv, "carol", "new here")

	require.Eventually(t, func() bool {
		list := c.Conversations().Conversations
		return len(list) == 1 && list[0].UnreadCount == 1 && list[0].LastMessage == "new here"
	}, waitFor, tick)
}

func TestClient_ProfileChangeUpdatesList(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	h.send(t, conv, "alice", "hi")
	c := h.start(t, "alice")

	_, err := h.deps.Posts.UpdateProfile(context.Background(), "bob", &model.Profile{Name: "Robert"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		list := c.Conversations().Conversations
		return len(list) == 1 && list[0].OtherUser.Name == "Robert"
	}, waitFor, tick)
}

func TestClient_OpenChatRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "bob", "carol")
	c := h.start(t, "alice")

	_, err := c.OpenChat(context.Background(), conv)

	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)
	assert.False(t, c.Tracker().IsFocused(conv))
}

func TestClient_CloseStopsUpdates(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	c := h.start(t, "alice")
	before := h.parts.Feed.Subscribers()

	c.Close()
	c.Close()

	assert.Less(t, h.parts.Feed.Subscribers(), before)
	h.send(t, conv, "bob", "ignored")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.Conversations().Conversations)

	_, err := c.OpenChat(context.Background(), conv)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
}

func TestHomeScreen_ReceivesPosts(t *testing.T) {
	h := newHarness(t)
	_, err := h.deps.Posts.Create(context.Background(), "bob", &model.CreatePostRequest{Body: "first"})
	require.NoError(t, err)

	c := h.start(t, "alice")
	home, err := c.OpenHome(context.Background(), "")
	require.NoError(t, err)
	defer home.Close()
	require.Len(t, home.Timeline().Snapshot(), 1)

	post, err := h.deps.Posts.Create(context.Background(), "carol", &model.CreatePostRequest{Body: "second"})
	require.NoError(t, err)
	require.NoError(t, h.deps.Posts.Like(context.Background(), "alice", post.ID))

	require.Eventually(t, func() bool {
		snap := home.Timeline().Snapshot()
		return len(snap) == 2 && snap[0].ID == post.ID && len(snap[0].Likes) == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		p := home.Timeline().Snapshot()[0]
		return p.User != nil && p.User.Name == "Carol"
	}, waitFor, tick)
}

func TestClient_ReceiverSeesAttachmentsLive(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	bob := h.start(t, "bob")

	screen, err := bob.OpenChat(context.Background(), conv)
	require.NoError(t, err)
	defer screen.Close()

	sent, err := h.deps.Messages.Send(context.Background(), model.Draft{
		ConversationID: conv,
		SenderID:       "alice",
		Attachments:    []model.Upload{{Type: model.AttachmentImage, Name: "cat.png", Data: png}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(screen.Messages()) == 1 }, waitFor, tick)
	got := screen.Messages()[0]
	assert.Equal(t, sent.ID, got.ID)
	assert.Empty(t, got.Body)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, sent.Attachments[0].URL, got.Attachments[0].URL)
	assert.Equal(t, "cat.png", got.Attachments[0].Name)
}

func TestClient_FailedUploadLeavesNothingBehind(t *testing.T) {
	h := newHarnessWithBlobs(t, brokenBlobs{})
	conv := h.conversation(t, "alice", "bob")
	alice := h.start(t, "alice")
	bob := h.start(t, "bob")

	screen, err := alice.OpenChat(context.Background(), conv)
	require.NoError(t, err)
	defer screen.Close()

	_, err = screen.Send(context.Background(), model.Draft{
		Body:        "hi",
		Attachments: []model.Upload{{Type: model.AttachmentImage, Name: "cat.png", Data: png}},
	})
	require.Error(t, err)

	// Any change event would have arrived by now.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, screen.Messages())
	assert.Equal(t, 0, unreadOf(bob, conv))
	assert.Equal(t, 0, bob.Conversations().TotalUnread)

	stored, err := h.deps.Messages.List(context.Background(), conv, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestClient_ClosingOneChatKeepsOtherFocused(t *testing.T) {
	h := newHarness(t)
	withBob := h.conversation(t, "alice", "bob")
	withCarol := h.conversation(t, "alice", "carol")
	c := h.start(t, "alice")

	first, err := c.OpenChat(context.Background(), withBob)
	require.NoError(t, err)
	defer first.Close()
	second, err := c.OpenChat(context.Background(), withCarol)
	require.NoError(t, err)
	second.Close()

	assert.True(t, c.Tracker().IsFocused(withBob))
	assert.False(t, c.Tracker().IsFocused(withCarol))

	updates := make(chan InboxUpdate, 16)
	remove := c.Observe(func(u InboxUpdate) {
		select {
		case updates <- u:
		default:
		}
	})
	defer remove()

	h.send(t, withBob, "bob", "still open")
	require.Eventually(t, func() bool { return len(first.Messages()) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool {
		list := c.Conversations().Conversations
		return len(list) > 0 && list[0].ID == withBob && list[0].LastMessage == "still open"
	}, waitFor, tick)
	for len(updates) > 0 {
		u := <-updates
		for _, s := range u.Conversations {
			if s.ID == withBob {
				assert.Equal(t, 0, s.UnreadCount, "the open conversation never shows unread")
			}
		}
	}
}

func TestClient_FollowsUpdatePeople(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.start(t, "alice")
	assert.Empty(t, c.People().Followers)

	require.NoError(t, h.deps.People.Follow(ctx, "bob", "alice"))
	require.NoError(t, h.deps.People.Follow(ctx, "alice", "carol"))

	require.Eventually(t, func() bool {
		p := c.People()
		return len(p.Followers) == 1 && p.Followers[0].Name == "Bob" &&
			len(p.Following) == 1 && p.Following[0].ID == "carol"
	}, waitFor, tick)
	assert.Equal(t, 1, c.UnreadNotifications(), "bob's follow")

	_, err := h.deps.Posts.UpdateProfile(ctx, "bob", &model.Profile{Name: "Robert"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		p := c.People()
		return len(p.Followers) == 1 && p.Followers[0].Name == "Robert"
	}, waitFor, tick)

	require.NoError(t, h.deps.People.Unfollow(ctx, "bob", "alice"))
	require.Eventually(t, func() bool { return len(c.People().Followers) == 0 }, waitFor, tick)
	assert.Len(t, c.People().Following, 1)
}

func TestClient_PostActivityNotifiesAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	post, err := h.deps.Posts.Create(ctx, "alice", &model.CreatePostRequest{Body: "hello"})
	require.NoError(t, err)
	c := h.start(t, "alice")

	require.NoError(t, h.deps.Posts.Like(ctx, "bob", post.ID))
	_, err = h.deps.Posts.Comment(ctx, "carol", post.ID, &model.CreateCommentRequest{Text: "nice"})
	require.NoError(t, err)
	require.NoError(t, h.deps.Posts.Like(ctx, "alice", post.ID))

	require.Eventually(t, func() bool { return c.UnreadNotifications() == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, c.UnreadNotifications(), "liking your own post notifies nobody")
	assert.Equal(t, 2, c.Conversations().UnreadNotifications)

	require.NoError(t, h.deps.People.ReadNotifications(ctx, "alice"))
	require.Eventually(t, func() bool { return c.UnreadNotifications() == 0 }, waitFor, tick)
}

func TestJobsScreen_ReceivesJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.deps.Jobs.Save(ctx, "bob", &model.SaveJobRequest{Title: "Designer", CompanyName: "Acme", Category: "design"})
	require.NoError(t, err)

	c := h.start(t, "alice")
	screen, err := c.OpenJobs(ctx, model.JobQuery{Category: "design"})
	require.NoError(t, err)
	defer screen.Close()
	require.Len(t, screen.Board().Snapshot(), 1)

	job, err := h.deps.Jobs.Save(ctx, "carol", &model.SaveJobRequest{Title: "Illustrator", CompanyName: "Ink", Category: "design"})
	require.NoError(t, err)
	_, err = h.deps.Jobs.Save(ctx, "carol", &model.SaveJobRequest{Title: "Closer", CompanyName: "Ink", Category: "sales"})
	require.NoError(t, err)
	require.NoError(t, h.deps.Jobs.Like(ctx, "alice", job.ID))

	require.Eventually(t, func() bool {
		snap := screen.Board().Snapshot()
		return len(snap) == 2 && snap[0].ID == job.ID && len(snap[0].Likes) == 1 &&
			snap[0].User != nil && snap[0].User.Name == "Carol"
	}, waitFor, tick)

	screen.Close()
	_, err = screen.LoadMore(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
}
