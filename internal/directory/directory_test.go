package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/backend/memory"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// fakeStore records calls and can inject a lost insert race.
type fakeStore struct {
	mu       sync.Mutex
	finds    int
	creates  int
	existing *model.Conversation
	winner   *model.Conversation
	findErr  error
	list     []model.ConversationSummary
}

func (f *fakeStore) FindConversation(ctx context.Context, a, b string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.existing != nil {
		return f.existing, nil
	}
	return nil, backend.ErrNotFound
}

func (f *fakeStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.winner != nil {
		f.existing = f.winner
		return backend.ErrConflict
	}
	f.existing = conv
	return nil
}

func (f *fakeStore) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	return f.list, nil
}

func TestGetOrCreate_RejectsSelf(t *testing.T) {
	store := &fakeStore{}
	d := New(store, logger.Nop())

	_, err := d.GetOrCreate(context.Background(), "alice", "alice")

	assert.ErrorIs(t, err, apperrors.ErrSelfConversation)
	assert.Zero(t, store.finds, "no backend call for a self conversation")
	assert.Zero(t, store.creates)
}

func TestGetOrCreate_RejectsMissingUser(t *testing.T) {
	d := New(&fakeStore{}, logger.Nop())

	_, err := d.GetOrCreate(context.Background(), "alice", "  ")
	assert.ErrorIs(t, err, apperrors.ErrMissingUserID)
}

func TestGetOrCreate_CreatesInCanonicalOrder(t *testing.T) {
	store := &fakeStore{}
	d := New(store, logger.Nop())

	conv, err := d.GetOrCreate(context.Background(), "zoe", "adam")
	require.NoError(t, err)

	assert.Equal(t, "adam", conv.UserAID)
	assert.Equal(t, "zoe", conv.UserBID)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, 1, store.creates)
}

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	existing := &model.Conversation{ID: "c1", UserAID: "adam", UserBID: "zoe"}
	store := &fakeStore{existing: existing}
	d := New(store, logger.Nop())

	conv, err := d.GetOrCreate(context.Background(), "adam", "zoe")
	require.NoError(t, err)

	assert.Equal(t, "c1", conv.ID)
	assert.Zero(t, store.creates)
}

func TestGetOrCreate_LostRaceReadsWinner(t *testing.T) {
	winner := &model.Conversation{ID: "winner", UserAID: "adam", UserBID: "zoe"}
	store := &fakeStore{winner: winner}
	d := New(store, logger.Nop())

	conv, err := d.GetOrCreate(context.Background(), "zoe", "adam")
	require.NoError(t, err)

	assert.Equal(t, "winner", conv.ID)
	assert.Equal(t, 2, store.finds)
}

func TestGetOrCreate_BackendFailure(t *testing.T) {
	store := &fakeStore{findErr: errors.New("connection refused")}
	d := New(store, logger.Nop())

	_, err := d.GetOrCreate(context.Background(), "adam", "zoe")

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
	assert.Zero(t, store.creates)
}

func TestGetOrCreate_BothOrdersSameConversation(t *testing.T) {
	b, _ := memory.New("", logger.Nop())
	d := New(b, logger.Nop())
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		ids   [8]string
		errs  [8]error
		users = [2]string{"adam", "zoe"}
	)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := d.GetOrCreate(ctx, users[i%2], users[(i+1)%2])
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestList_SortedNewestFirst(t *testing.T) {
	now := time.Now()
	store := &fakeStore{list: []model.ConversationSummary{
		{ID: "b", UpdatedAt: now.Add(-time.Hour)},
		{ID: "c", UpdatedAt: now},
		{ID: "a", UpdatedAt: now},
	}}
	d := New(store, logger.Nop())

	list, err := d.List(context.Background(), "viewer")
	require.NoError(t, err)

	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}

func TestList_RequiresUser(t *testing.T) {
	d := New(&fakeStore{}, logger.Nop())
	_, err := d.List(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrMissingUserID)
}
