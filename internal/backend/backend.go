// Package backend defines the hosted-backend contract the sync layer talks to:
// row storage, per-viewer counters, a change feed and blob storage.
package backend

import (
	"context"
	"time"

	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = apperrors.NotFound("record not found")

	// ErrConflict is returned by stores when an insert violates a unique key.
	ErrConflict = apperrors.AlreadyExists("record already exists")
)

// Store is row-level persistence.
type Store interface {
	// FindConversation returns the conversation between a and b stored in
	// either order.
	FindConversation(ctx context.Context, a, b string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	InsertConversation(ctx context.Context, conv *model.Conversation) error
	UpdateConversationLastMessage(ctx context.Context, id, text, senderID string, at time.Time) (*model.Conversation, error)
	// ListUserConversations returns the denormalized list view without
	// unread counts.
	ListUserConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	// InsertMessage stores a message together with msg.Attachments in one
	// transaction.
	InsertMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns messages newest first, attachments included.
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	// MarkMessagesRead flags every unread message not sent by viewerID and
	// returns the rows it changed.
	MarkMessagesRead(ctx context.Context, conversationID, viewerID string) ([]model.Message, error)

	// GetProfile fills the follower and following counts.
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error

	// InsertFollow stores a follow; ErrConflict when it already exists.
	InsertFollow(ctx context.Context, f *model.Follow) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) (*model.Follow, error)
	// ListPeople returns the profiles following userID and the profiles
	// userID follows, newest relation first.
	ListPeople(ctx context.Context, userID string) (*model.People, error)

	InsertNotification(ctx context.Context, n *model.Notification) error
	// ListNotifications returns receiverID's notifications newest first with
	// the sender joined.
	ListNotifications(ctx context.Context, receiverID string, limit, offset int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, receiverID string) (int, error)
	// MarkNotificationsRead flags every unread notification of receiverID
	// and returns the rows it changed.
	MarkNotificationsRead(ctx context.Context, receiverID string) ([]model.Notification, error)

	// ListJobs returns jobs newest first with author and likes.
	ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	InsertJob(ctx context.Context, j *model.Job) error
	// UpdateJob replaces the editable fields of j.UserID's job and returns
	// the stored row; ErrNotFound when the job is someone else's.
	UpdateJob(ctx context.Context, j *model.Job) (*model.Job, error)
	InsertJobLike(ctx context.Context, l *model.JobLike) error
	DeleteJobLike(ctx context.Context, jobID, userID string) (*model.JobLike, error)

	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns posts newest first with author, likes and comments.
	ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error)
	InsertPost(ctx context.Context, p *model.Post) error
	// DeletePost and DeleteComment only remove rows owned by userID.
	DeletePost(ctx context.Context, id, userID string) (*model.Post, error)
	InsertLike(ctx context.Context, l *model.Like) error
	DeleteLike(ctx context.Context, postID, userID string) (*model.Like, error)
	InsertComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id, userID string) (*model.Comment, error)

	Ping(ctx context.Context) error
}

// Counters keeps per-viewer unread counts. Increments must be atomic.
type Counters interface {
	Increment(ctx context.Context, viewerID, conversationID string) (int64, error)
	Reset(ctx context.Context, viewerID, conversationID string) error
	All(ctx context.Context, viewerID string) (map[string]int64, error)
}

// Handler receives change events from a subscription.
type Handler func(ev model.ChangeEvent)

// Subscription is an open change-feed subscription.
type Subscription interface {
	Unsubscribe() error
}

// Feed is the pub/sub change-feed primitive.
type Feed interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
	Subscribe(ctx context.Context, filter model.Filter, fn Handler) (Subscription, error)
}

// Blobs stores binary payloads and returns a retrievable URL.
type Blobs interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// BlobReader serves stored payloads back by path.
type BlobReader interface {
	Get(ctx context.Context, path string) ([]byte, string, error)
}

// Backend is everything the sync layer needs from the hosted backend.
type Backend interface {
	FindConversation(ctx context.Context, a, b string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	TouchConversation(ctx context.Context, id, text, senderID string, at time.Time) error
	// ListConversations is the get_user_conversations view, unread counts
	// filled for userID.
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	// InsertMessage commits a message with its already uploaded attachments
	// and publishes a single INSERT carrying both.
	InsertMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID, viewerID string) error
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)

	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error

	// Follow records the relation, republishes both profiles with their new
	// counts and notifies the followee.
	Follow(ctx context.Context, f *model.Follow) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	ListPeople(ctx context.Context, userID string) (*model.People, error)

	ListNotifications(ctx context.Context, receiverID string, limit, offset int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, receiverID string) (int, error)
	MarkNotificationsRead(ctx context.Context, receiverID string) error

	ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// SaveJob inserts j when its ID is empty and updates the owner's job
	// otherwise.
	SaveJob(ctx context.Context, j *model.Job) error
	LikeJob(ctx context.Context, l *model.JobLike) error
	UnlikeJob(ctx context.Context, jobID, userID string) error

	ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error)
	CreatePost(ctx context.Context, p *model.Post) error
	DeletePost(ctx context.Context, id, userID string) error
	// LikePost and CreateComment notify the post author unless they acted
	// on their own post.
	LikePost(ctx context.Context, l *model.Like) error
	UnlikePost(ctx context.Context, postID, userID string) error
	CreateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id, userID string) error

	Subscribe(ctx context.Context, filter model.Filter, fn Handler) (Subscription, error)
	Ping(ctx context.Context) error
}
