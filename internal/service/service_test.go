package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/backend/memory"
	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type services struct {
	backend       backend.Backend
	parts         *memory.Parts
	conversations *ConversationService
	messages      *MessageService
	posts         *PostService
	people        *PeopleService
	jobs          *JobService
}

func setup(t *testing.T) *services {
	t.Helper()
	b, parts := memory.New("https://cdn.test", logger.Nop())
	return &services{
		backend:       b,
		parts:         parts,
		conversations: NewConversationService(b, logger.Nop()),
		messages:      NewMessageService(b, logger.Nop()),
		posts:         NewPostService(b, logger.Nop()),
		people:        NewPeopleService(b, logger.Nop()),
		jobs:          NewJobService(b, logger.Nop()),
	}
}

func TestConversationService_GetOrCreateIsSymmetric(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	c1, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	c2, err := s.conversations.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
}

func TestConversationService_GetHidesOtherUsersConversations(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = s.conversations.Get(ctx, "carol", conv.ID)
	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)

	_, err = s.conversations.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)

	_, err = s.conversations.Get(ctx, "alice", "")
	assert.ErrorIs(t, err, apperrors.ErrMissingConversation)
}

func TestConversationService_ListAndMarkRead(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	empty, err := s.conversations.List(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty.Conversations)

	for _, text := range []string{"one", "two"} {
		_, err := s.messages.Send(ctx, model.Draft{ConversationID: conv.ID, SenderID: "bob", Body: text})
		require.NoError(t, err)
	}

	resp, err := s.conversations.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, 2, resp.TotalUnread)
	assert.Equal(t, "two", resp.Conversations[0].LastMessage)

	bobs, err := s.conversations.List(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bobs.TotalUnread, "unread counts are per viewer")

	require.NoError(t, s.conversations.MarkRead(ctx, "alice", conv.ID))

	resp, err = s.conversations.List(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, resp.TotalUnread)
	msgs, err := s.messages.List(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.Read)
	}

	assert.ErrorIs(t, s.conversations.MarkRead(ctx, "carol", conv.ID), apperrors.ErrConversationNotFound)
}

func TestMessageService_Send(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := s.messages.Send(ctx, model.Draft{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Body:           "look",
		ClientID:       "cid-1",
		Attachments:    []model.Upload{{Type: model.AttachmentImage, Name: `C:\photos\cat.png`, Data: png}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.IsProvisional())
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.Equal(t, "cid-1", msg.ClientID)
	assert.False(t, msg.CreatedAt.IsZero())

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "cat.png", att.Name)
	assert.Equal(t, int64(len(png)), att.Size)
	prefix := "https://cdn.test/messages/alice/" + conv.ID + "/" + msg.ID + "/"
	assert.True(t, strings.HasPrefix(att.URL, prefix), att.URL)
	assert.True(t, strings.HasSuffix(att.URL, "-cat.png"), att.URL)

	data, contentType, err := s.parts.Blobs.Get(ctx, strings.TrimPrefix(att.URL, "https://cdn.test/"))
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", contentType)

	msgs, err := s.messages.List(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Attachments, 1)
}

func TestMessageService_SendAttachmentOnly(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := s.messages.Send(ctx, model.Draft{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Attachments:    []model.Upload{{Type: model.AttachmentVideo, Name: "clip.mp4", Data: []byte("....ftypmp42")}},
	})
	require.NoError(t, err)
	assert.Empty(t, msg.Body)
	assert.Len(t, msg.Attachments, 1)
}

type failingBlobs struct{}

func (failingBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	return "", errors.New("storage down")
}

func TestMessageService_SendUploadFailureCommitsNothing(t *testing.T) {
	parts := &memory.Parts{
		Store:    memory.NewStore(),
		Counters: memory.NewCounters(),
		Feed:     memory.NewFeed(),
	}
	b := backend.NewHosted(parts.Store, parts.Counters, parts.Feed, failingBlobs{}, logger.Nop())
	conversations := NewConversationService(b, logger.Nop())
	messages := NewMessageService(b, logger.Nop())
	ctx := context.Background()

	conv, err := conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		events []model.ChangeEvent
	)
	sub, err := b.Subscribe(ctx, model.Filter{Table: model.TableMessages}, func(ev model.ChangeEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	_, err = messages.Send(ctx, model.Draft{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Body:           "hi",
		Attachments:    []model.Upload{{Type: model.AttachmentImage, Name: "cat.png", Data: png}},
	})
	require.Error(t, err)

	msgs, err := messages.List(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	counts, err := parts.Counters.All(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, counts[conv.ID])

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, events)
}

func TestMessageService_SendRejections(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	tests := []struct {
		name  string
		draft model.Draft
		want  error
	}{
		{"empty", model.Draft{ConversationID: conv.ID, SenderID: "alice", Body: " \n "}, apperrors.ErrEmptyMessage},
		{"missing conversation", model.Draft{ConversationID: "nope", SenderID: "alice", Body: "hi"}, apperrors.ErrConversationNotFound},
		{"outsider", model.Draft{ConversationID: conv.ID, SenderID: "carol", Body: "hi"}, apperrors.ErrNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.messages.Send(ctx, tt.draft)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	msgs, err := s.messages.List(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageService_ListPaging(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	conv, err := s.conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		_, err := s.messages.Send(ctx, model.Draft{ConversationID: conv.ID, SenderID: "alice", Body: text})
		require.NoError(t, err)
	}

	page, err := s.messages.List(ctx, conv.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "4"}, []string{page[0].Body, page[1].Body})

	page, err = s.messages.List(ctx, conv.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "1", page[0].Body)

	_, err = s.messages.List(ctx, "", 2, 0)
	assert.ErrorIs(t, err, apperrors.ErrMissingConversation)
}

func TestMessageService_Profile(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	_, err := s.posts.UpdateProfile(ctx, "alice", &model.Profile{Name: "Alice"})
	require.NoError(t, err)

	p, err := s.messages.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)

	_, err = s.messages.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestPostService_Lifecycle(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	post, err := s.posts.Create(ctx, "alice", &model.CreatePostRequest{
		Body: "hello world",
		File: &model.Upload{Type: model.AttachmentImage, Name: "pic.png", Data: png},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.File, "https://cdn.test/posts/alice/"), post.File)

	require.NoError(t, s.posts.Like(ctx, "bob", post.ID))
	require.NoError(t, s.posts.Like(ctx, "bob", post.ID), "liking twice is not an error")
	comment, err := s.posts.Comment(ctx, "bob", post.ID, &model.CreateCommentRequest{Text: "nice"})
	require.NoError(t, err)

	list, err := s.posts.List(ctx, 10, 0, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Likes, 1)
	assert.Len(t, list[0].Comments, 1)

	assert.ErrorIs(t, s.posts.DeleteComment(ctx, "alice", comment.ID), apperrors.NotFound("comment not found"),
		"only the author deletes a comment")
	require.NoError(t, s.posts.DeleteComment(ctx, "bob", comment.ID))
	require.NoError(t, s.posts.Unlike(ctx, "bob", post.ID))

	assert.ErrorIs(t, s.posts.Delete(ctx, "bob", post.ID), apperrors.ErrPostNotFound)
	require.NoError(t, s.posts.Delete(ctx, "alice", post.ID))

	list, err = s.posts.List(ctx, 10, 0, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPostService_Validation(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	_, err := s.posts.Create(ctx, "alice", &model.CreatePostRequest{Body: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))

	_, err = s.posts.Comment(ctx, "alice", "missing", &model.CreateCommentRequest{Text: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)

	assert.ErrorIs(t, s.posts.Like(ctx, "alice", "missing"), apperrors.ErrPostNotFound)

	_, err = s.posts.UpdateProfile(ctx, "alice", &model.Profile{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestPostService_ListByAuthor(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "alice"} {
		_, err := s.posts.Create(ctx, u, &model.CreatePostRequest{Body: "by " + u})
		require.NoError(t, err)
	}

	list, err := s.posts.ListPosts(ctx, 10, 0, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPeopleService_Follow(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := s.posts.UpdateProfile(ctx, name, &model.Profile{Name: name})
		require.NoError(t, err)
	}

	assert.ErrorIs(t, s.people.Follow(ctx, "alice", "alice"), apperrors.ErrSelfFollow)
	assert.ErrorIs(t, s.people.Follow(ctx, "alice", ""), apperrors.ErrMissingUserID)
	assert.ErrorIs(t, s.people.Follow(ctx, "alice", "ghost"), apperrors.ErrUserNotFound)

	require.NoError(t, s.people.Follow(ctx, "alice", "bob"))
	require.NoError(t, s.people.Follow(ctx, "alice", "bob"), "following twice is not an error")

	people, err := s.people.People(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, people.Followers, 1)
	assert.Equal(t, "alice", people.Followers[0].ID)
	assert.Empty(t, people.Following)

	require.NoError(t, s.people.Unfollow(ctx, "alice", "bob"))
	assert.ErrorIs(t, s.people.Unfollow(ctx, "alice", "bob"), apperrors.ErrNotFollowing)
}

func TestPeopleService_Notifications(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	post, err := s.posts.Create(ctx, "alice", &model.CreatePostRequest{Body: "hello"})
	require.NoError(t, err)
	for _, u := range []string{"bob", "carol", "dave"} {
		require.NoError(t, s.posts.Like(ctx, u, post.ID))
	}

	page, err := s.people.Notifications(ctx, "alice", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Unread)

	require.NoError(t, s.people.ReadNotifications(ctx, "alice"))
	unread, err := s.people.UnreadNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, unread)

	page, err = s.people.Notifications(ctx, "alice", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 1)
	assert.False(t, page.HasMore)
}

func TestJobService_Save(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	req := &model.SaveJobRequest{
		Title:       "Designer",
		CompanyName: "Acme",
		Category:    "design",
		File:        &model.Upload{Type: model.AttachmentImage, Name: "logo.png", Data: png},
	}

	job, err := s.jobs.Save(ctx, "alice", req)
	require.NoError(t, err)
	assert.Equal(t, model.JobOpen, job.Status)
	assert.True(t, strings.HasPrefix(job.File, "https://cdn.test/jobImages/alice/"), job.File)
	assert.NotNil(t, job.Likes)

	edit := &model.SaveJobRequest{ID: job.ID, Title: "Lead Designer", CompanyName: "Acme", Category: "design", Status: model.JobClosed}
	updated, err := s.jobs.Save(ctx, "alice", edit)
	require.NoError(t, err)
	assert.Equal(t, job.File, updated.File, "an edit without a file keeps the stored one")
	assert.Equal(t, model.JobClosed, updated.Status)

	_, err = s.jobs.Save(ctx, "bob", edit)
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)

	got, err := s.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead Designer", got.Title)

	_, err = s.jobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestJobService_Validation(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	valid := model.SaveJobRequest{Title: "t", CompanyName: "c", Category: "k"}

	for name, mutate := range map[string]func(r *model.SaveJobRequest){
		"title":    func(r *model.SaveJobRequest) { r.Title = " " },
		"company":  func(r *model.SaveJobRequest) { r.CompanyName = "" },
		"category": func(r *model.SaveJobRequest) { r.Category = "" },
		"status":   func(r *model.SaveJobRequest) { r.Status = "paused" },
	} {
		req := valid
		mutate(&req)
		_, err := s.jobs.Save(ctx, "alice", &req)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument), name)
	}

	_, err := s.jobs.Save(ctx, "", &valid)
	assert.ErrorIs(t, err, apperrors.ErrMissingUserID)
}

func TestJobService_ListAndLikes(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	for _, cat := range []string{"design", "engineering", "design"} {
		_, err := s.jobs.Save(ctx, "alice", &model.SaveJobRequest{Title: cat, CompanyName: "Acme", Category: cat})
		require.NoError(t, err)
	}

	list, err := s.jobs.ListJobs(ctx, model.JobQuery{Category: "design"})
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.jobs.Like(ctx, "bob", list[0].ID))
	require.NoError(t, s.jobs.Like(ctx, "bob", list[0].ID), "liking twice is not an error")
	assert.ErrorIs(t, s.jobs.Like(ctx, "bob", "missing"), apperrors.ErrJobNotFound)

	got, err := s.jobs.Get(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 1)

	require.NoError(t, s.jobs.Unlike(ctx, "bob", list[0].ID))
	assert.True(t, apperrors.HasCode(s.jobs.Unlike(ctx, "bob", list[0].ID), apperrors.CodeNotFound))
}
