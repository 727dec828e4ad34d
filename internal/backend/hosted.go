package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
	"github.com/workhub-social/chatsync/pkg/tracing"
)

// Hosted composes a Store, Counters, Feed and Blobs into a Backend. Every
// committed write is followed by a ChangeEvent on the feed, the way a hosted
// database publishes its replication stream.
type Hosted struct {
	store    Store
	counters Counters
	feed     Feed
	blobs    Blobs
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewHosted creates a hosted backend from its parts.
func NewHosted(store Store, counters Counters, feed Feed, blobs Blobs, log *logger.Logger) *Hosted {
	return &Hosted{
		store:    store,
		counters: counters,
		feed:     feed,
		blobs:    blobs,
		logger:   log.Named("backend"),
		tracer:   tracing.Tracer("chatsync/backend"),
	}
}

func (h *Hosted) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := h.tracer.Start(ctx, "backend."+op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordBackendCall(op, err, time.Since(start).Seconds())
	return err
}

// publish emits a change event. The write has already committed, so a feed
// failure is logged and not returned.
func (h *Hosted) publish(ctx context.Context, table model.Table, typ model.EventType, newRow, oldRow any, keys map[string]string) {
	ev, err := model.NewChangeEvent(uuid.NewString(), table, typ, newRow, oldRow, keys)
	if err != nil {
		h.logger.Error("failed to encode change event", zap.String("table", string(table)), zap.Error(err))
		return
	}
	if err := h.feed.Publish(ctx, ev); err != nil {
		h.logger.Warn("failed to publish change event",
			zap.String("table", string(table)),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func conversationKeys(c *model.Conversation) map[string]string {
	return map[string]string{"id": c.ID, "user_a_id": c.UserAID, "user_b_id": c.UserBID}
}

func messageKeys(m *model.Message) map[string]string {
	return map[string]string{
		"id":              m.ID,
		"client_id":       m.ClientID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"receiver_id":     m.ReceiverID,
	}
}

// FindConversation looks up the conversation between a and b.
func (h *Hosted) FindConversation(ctx context.Context, a, b string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := h.call(ctx, "FindConversation", func(ctx context.Context) error {
		var err error
		conv, err = h.store.FindConversation(ctx, a, b)
		return err
	})
	return conv, err
}

// GetConversation loads a conversation by id.
func (h *Hosted) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := h.call(ctx, "GetConversation", func(ctx context.Context) error {
		var err error
		conv, err = h.store.GetConversation(ctx, id)
		return err
	})
	return conv, err
}

// CreateConversation inserts a conversation; ErrConflict when the pair exists.
func (h *Hosted) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	err := h.call(ctx, "CreateConversation", func(ctx context.Context) error {
		if conv.ID == "" {
			conv.ID = uuid.Must(uuid.NewV7()).String()
		}
		return h.store.InsertConversation(ctx, conv)
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableConversations, model.EventInsert, conv, nil, conversationKeys(conv))
	return nil
}

// TouchConversation records the latest message on the conversation row.
func (h *Hosted) TouchConversation(ctx context.Context, id, text, senderID string, at time.Time) error {
	var conv *model.Conversation
	err := h.call(ctx, "TouchConversation", func(ctx context.Context) error {
		var err error
		conv, err = h.store.UpdateConversationLastMessage(ctx, id, text, senderID, at)
		return err
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableConversations, model.EventUpdate, conv, nil, conversationKeys(conv))
	return nil
}

// ListConversations returns userID's conversations with their unread counts.
func (h *Hosted) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	var list []model.ConversationSummary
	err := h.call(ctx, "ListConversations", func(ctx context.Context) error {
		var err error
		list, err = h.store.ListUserConversations(ctx, userID)
		if err != nil {
			return err
		}
		counts, err := h.counters.All(ctx, userID)
		if err != nil {
			return err
		}
		for i := range list {
			list[i].UnreadCount = int(counts[list[i].ID])
		}
		return nil
	})
	return list, err
}

// InsertMessage persists a message with its attachments and bumps the
// receiver's unread count. Attachment blobs must already be uploaded.
func (h *Hosted) InsertMessage(ctx context.Context, msg *model.Message) error {
	err := h.call(ctx, "InsertMessage", func(ctx context.Context) error {
		if msg.ID == "" || msg.IsProvisional() {
			msg.ID = uuid.Must(uuid.NewV7()).String()
		}
		msg.CreatedAt = now()
		msg.Pending = false
		for i := range msg.Attachments {
			a := &msg.Attachments[i]
			if a.ID == "" {
				a.ID = uuid.Must(uuid.NewV7()).String()
			}
			a.MessageID = msg.ID
		}
		if err := h.store.InsertMessage(ctx, msg); err != nil {
			return err
		}
		if _, err := h.counters.Increment(ctx, msg.ReceiverID, msg.ConversationID); err != nil {
			h.logger.Warn("failed to increment unread count",
				zap.String("conversation_id", msg.ConversationID),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableMessages, model.EventInsert, msg, nil, messageKeys(msg))
	return nil
}

// ListMessages returns a page of messages, newest first.
func (h *Hosted) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := h.call(ctx, "ListMessages", func(ctx context.Context) error {
		var err error
		msgs, err = h.store.ListMessages(ctx, conversationID, limit, offset)
		return err
	})
	return msgs, err
}

// MarkRead flags viewerID's inbound messages read and clears the counter.
func (h *Hosted) MarkRead(ctx context.Context, conversationID, viewerID string) error {
	var changed []model.Message
	err := h.call(ctx, "MarkRead", func(ctx context.Context) error {
		var err error
		changed, err = h.store.MarkMessagesRead(ctx, conversationID, viewerID)
		if err != nil {
			return err
		}
		return h.counters.Reset(ctx, viewerID, conversationID)
	})
	if err != nil {
		return err
	}
	for i := range changed {
		h.publish(ctx, model.TableMessages, model.EventUpdate, &changed[i], nil, messageKeys(&changed[i]))
	}
	return nil
}

// Upload stores a blob and returns its URL.
func (h *Hosted) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	var url string
	err := h.call(ctx, "Upload", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("blob.path", path),
			attribute.Int("blob.size", len(data)),
		)
		var err error
		url, err = h.blobs.Upload(ctx, path, data, contentType)
		return err
	})
	return url, err
}

// GetProfile loads a user's public profile.
func (h *Hosted) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p *model.Profile
	err := h.call(ctx, "GetProfile", func(ctx context.Context) error {
		var err error
		p, err = h.store.GetProfile(ctx, id)
		return err
	})
	return p, err
}

// UpdateProfile creates or replaces a profile. The published row carries
// the stored follow counts.
func (h *Hosted) UpdateProfile(ctx context.Context, p *model.Profile) error {
	err := h.call(ctx, "UpdateProfile", func(ctx context.Context) error {
		return h.store.UpsertProfile(ctx, p)
	})
	if err != nil {
		return err
	}
	if stored := h.publishProfile(ctx, p.ID); stored != nil {
		*p = *stored
	}
	return nil
}

// ListPosts returns a page of the feed.
func (h *Hosted) ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error) {
	var posts []model.Post
	err := h.call(ctx, "ListPosts", func(ctx context.Context) error {
		var err error
		posts, err = h.store.ListPosts(ctx, limit, offset, userID)
		return err
	})
	return posts, err
}

// CreatePost publishes a post.
func (h *Hosted) CreatePost(ctx context.Context, p *model.Post) error {
	err := h.call(ctx, "CreatePost", func(ctx context.Context) error {
		if p.ID == "" {
			p.ID = uuid.Must(uuid.NewV7()).String()
		}
		p.CreatedAt = now()
		return h.store.InsertPost(ctx, p)
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TablePosts, model.EventInsert, p, nil, map[string]string{"id": p.ID, "user_id": p.UserID})
	return nil
}

// DeletePost removes userID's post.
func (h *Hosted) DeletePost(ctx context.Context, id, userID string) error {
	var old *model.Post
	err := h.call(ctx, "DeletePost", func(ctx context.Context) error {
		var err error
		old, err = h.store.DeletePost(ctx, id, userID)
		return err
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TablePosts, model.EventDelete, nil, old, map[string]string{"id": old.ID, "user_id": old.UserID})
	return nil
}

// LikePost records a like.
func (h *Hosted) LikePost(ctx context.Context, l *model.Like) error {
	err := h.call(ctx, "LikePost", func(ctx context.Context) error {
		if l.ID == "" {
			l.ID = uuid.Must(uuid.NewV7()).String()
		}
		l.CreatedAt = now()
		return h.store.InsertLike(ctx, l)
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableLikes, model.EventInsert, l, nil, map[string]string{"id": l.ID, "post_id": l.PostID})
	h.notifyPostAuthor(ctx, l.PostID, l.UserID, model.NotificationLike)
	return nil
}

// UnlikePost removes userID's like of postID.
func (h *Hosted) UnlikePost(ctx context.Context, postID, userID string) error {
	var old *model.Like
	err := h.call(ctx, "UnlikePost", func(ctx context.Context) error {
		var err error
		old, err = h.store.DeleteLike(ctx, postID, userID)
		return err
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableLikes, model.EventDelete, nil, old, map[string]string{"id": old.ID, "post_id": old.PostID})
	return nil
}

// CreateComment adds a comment to a post.
func (h *Hosted) CreateComment(ctx context.Context, c *model.Comment) error {
	err := h.call(ctx, "CreateComment", func(ctx context.Context) error {
		if c.ID == "" {
			c.ID = uuid.Must(uuid.NewV7()).String()
		}
		c.CreatedAt = now()
		return h.store.InsertComment(ctx, c)
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableComments, model.EventInsert, c, nil, map[string]string{"id": c.ID, "post_id": c.PostID})
	h.notifyPostAuthor(ctx, c.PostID, c.UserID, model.NotificationComment)
	return nil
}

// DeleteComment removes userID's comment.
func (h *Hosted) DeleteComment(ctx context.Context, id, userID string) error {
	var old *model.Comment
	err := h.call(ctx, "DeleteComment", func(ctx context.Context) error {
		var err error
		old, err = h.store.DeleteComment(ctx, id, userID)
		return err
	})
	if err != nil {
		return err
	}
	h.publish(ctx, model.TableComments, model.EventDelete, nil, old, map[string]string{"id": old.ID, "post_id": old.PostID})
	return nil
}

// Subscribe opens a filtered change-feed subscription.
func (h *Hosted) Subscribe(ctx context.Context, filter model.Filter, fn Handler) (Subscription, error) {
	var sub Subscription
	err := h.call(ctx, "Subscribe", func(ctx context.Context) error {
		var err error
		sub, err = h.feed.Subscribe(ctx, filter, fn)
		return err
	})
	return sub, err
}

// Ping checks the store.
func (h *Hosted) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}

// now is truncated to the precision of a Postgres timestamp so a row read
// back compares equal to the one that was published.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
