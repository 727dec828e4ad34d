package nats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
)

func startServer(t *testing.T) *Client {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go srv.Start()
	require.True(t, srv.ReadyForConnections(5*time.Second), "nats server did not start")
	t.Cleanup(srv.Shutdown)

	client, err := Connect(context.Background(), Config{URL: srv.ClientURL()}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

type collector struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (c *collector) handle(ev model.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.ID
	}
	return out
}

func messageEvent(t *testing.T, id, conversationID string, typ model.EventType) model.ChangeEvent {
	t.Helper()
	msg := model.Message{ID: id, ConversationID: conversationID, SenderID: "alice", ReceiverID: "bob", Body: "hi"}
	ev, err := model.NewChangeEvent(id, model.TableMessages, typ, msg, nil, map[string]string{
		"conversation_id": conversationID,
		"receiver_id":     "bob",
	})
	require.NoError(t, err)
	return ev
}

func TestChangeFeed_FilteredDelivery(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed(startServer(t), logger.Nop())
	require.NoError(t, feed.EnsureStream(ctx))
	// Idempotent.
	require.NoError(t, feed.EnsureStream(ctx))

	var got collector
	sub, err := feed.Subscribe(ctx, model.Filter{
		Table:  model.TableMessages,
		Event:  model.EventInsert,
		Column: "conversation_id",
		Value:  "conv-1",
	}, got.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m1", "conv-1", model.EventInsert)))
	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m2", "conv-2", model.EventInsert)))
	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m3", "conv-1", model.EventUpdate)))
	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m4", "conv-1", model.EventInsert)))

	require.Eventually(t, func() bool { return len(got.ids()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"m1", "m4"}, got.ids())

	got.mu.Lock()
	first := got.events[0]
	got.mu.Unlock()
	var decoded model.Message
	require.NoError(t, first.DecodeNew(&decoded))
	assert.Equal(t, "hi", decoded.Body)
}

func TestChangeFeed_OnlyNewEvents(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed(startServer(t), logger.Nop())
	require.NoError(t, feed.EnsureStream(ctx))

	require.NoError(t, feed.Publish(ctx, messageEvent(t, "old", "conv-1", model.EventInsert)))

	var got collector
	sub, err := feed.Subscribe(ctx, model.Filter{Table: model.TableMessages, Event: model.EventAny}, got.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, feed.Publish(ctx, messageEvent(t, "new", "conv-1", model.EventInsert)))

	require.Eventually(t, func() bool { return len(got.ids()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"new"}, got.ids())
}

func TestChangeFeed_DuplicatePublishStoredOnce(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed(startServer(t), logger.Nop())
	require.NoError(t, feed.EnsureStream(ctx))

	var got collector
	sub, err := feed.Subscribe(ctx, model.Filter{Table: model.TableMessages}, got.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev := messageEvent(t, "m1", "conv-1", model.EventInsert)
	require.NoError(t, feed.Publish(ctx, ev))
	require.NoError(t, feed.Publish(ctx, ev))
	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m2", "conv-1", model.EventInsert)))

	require.Eventually(t, func() bool { return len(got.ids()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, got.ids())
}

func TestChangeFeed_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed(startServer(t), logger.Nop())
	require.NoError(t, feed.EnsureStream(ctx))

	var got collector
	sub, err := feed.Subscribe(ctx, model.Filter{Table: model.TableMessages}, got.handle)
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m1", "conv-1", model.EventInsert)))
	require.Eventually(t, func() bool { return len(got.ids()) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, feed.Publish(ctx, messageEvent(t, "m2", "conv-1", model.EventInsert)))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"m1"}, got.ids())
}

func TestChangeFeed_SubscribeWithoutStream(t *testing.T) {
	feed := NewChangeFeed(startServer(t), logger.Nop())

	_, err := feed.Subscribe(context.Background(), model.Filter{Table: model.TableMessages}, func(model.ChangeEvent) {})
	assert.Error(t, err)
}

func TestFilterSubject(t *testing.T) {
	assert.Equal(t, "chg.messages.*", FilterSubject(model.Filter{Table: model.TableMessages}))
	assert.Equal(t, "chg.messages.*", FilterSubject(model.Filter{Table: model.TableMessages, Event: model.EventAny}))
	assert.Equal(t, "chg.likes.DELETE", FilterSubject(model.Filter{Table: model.TableLikes, Event: model.EventDelete}))
}

func TestObjectBlobs(t *testing.T) {
	ctx := context.Background()
	client := startServer(t)

	blobs, err := NewObjectBlobs(ctx, client, "", "http://localhost:8080/files/")
	require.NoError(t, err)

	url, err := blobs.Upload(ctx, "messages/alice/conv-1/m1/1700000000000-cat.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/messages/alice/conv-1/m1/1700000000000-cat.png", url)

	data, contentType, err := blobs.Get(ctx, "messages/alice/conv-1/m1/1700000000000-cat.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", contentType)

	_, _, err = blobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, backend.ErrNotFound)

	// Reopening finds the existing bucket.
	again, err := NewObjectBlobs(ctx, client, DefaultBucket, "http://localhost:8080/files")
	require.NoError(t, err)
	data, _, err = again.Get(ctx, "messages/alice/conv-1/m1/1700000000000-cat.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}
