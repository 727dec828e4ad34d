package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/workhub-social/chatsync/pkg/errors"
)

func TestRegistry_SharesOneClientPerViewer(t *testing.T) {
	h := newHarness(t)
	r := NewRegistry(h.deps)
	defer r.Close()
	ctx := context.Background()

	c1, release1, err := r.Acquire(ctx, "alice")
	require.NoError(t, err)
	c2, release2, err := r.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	other, releaseOther, err := r.Acquire(ctx, "bob")
	require.NoError(t, err)
	defer releaseOther()
	assert.NotSame(t, c1, other)

	release1()
	release1()
	home, err := c1.OpenHome(ctx, "")
	require.NoError(t, err, "still referenced")
	home.Close()

	release2()
	_, err = c1.OpenHome(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)

	c3, release3, err := r.Acquire(ctx, "alice")
	require.NoError(t, err)
	defer release3()
	assert.NotSame(t, c1, c3)
}

func TestRegistry_SessionsAreScopedToViewer(t *testing.T) {
	h := newHarness(t)
	conv := h.conversation(t, "alice", "bob")
	r := NewRegistry(h.deps)
	defer r.Close()
	ctx := context.Background()

	c, release, err := r.Acquire(ctx, "alice")
	require.NoError(t, err)
	defer release()

	screen, err := c.OpenChat(ctx, conv)
	require.NoError(t, err)
	r.Register(screen)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Chat(screen.ID(), "alice")
	require.True(t, ok)
	assert.Same(t, screen, got)

	_, ok = r.Lookup(screen.ID(), "bob")
	assert.False(t, ok, "another viewer cannot address the session")

	home, err := c.OpenHome(ctx, "")
	require.NoError(t, err)
	r.Register(home)
	_, ok = r.Chat(home.ID(), "alice")
	assert.False(t, ok, "home screen is not a chat")

	r.Unregister(screen.ID())
	_, ok = r.Lookup(screen.ID(), "alice")
	assert.False(t, ok)
	screen.Close()
}

func TestRegistry_CloseClosesEverything(t *testing.T) {
	h := newHarness(t)
	r := NewRegistry(h.deps)
	ctx := context.Background()

	c, _, err := r.Acquire(ctx, "alice")
	require.NoError(t, err)
	home, err := c.OpenHome(ctx, "")
	require.NoError(t, err)
	r.Register(home)

	r.Close()
	r.Close()

	assert.Zero(t, r.Len())
	assert.Zero(t, h.parts.Feed.Subscribers())
	_, _, err = r.Acquire(ctx, "alice")
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
}
