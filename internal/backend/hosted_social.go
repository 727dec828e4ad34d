package backend

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/model"
)

func followKeys(f *model.Follow) map[string]string {
	return map[string]string{"id": f.ID, "follower_id": f.FollowerID, "followee_id": f.FolloweeID}
}

func notificationKeys(n *model.Notification) map[string]string {
	return map[string]string{"id": n.ID, "receiver_id": n.ReceiverID, "sender_id": n.SenderID}
}

// Follow records that f.FollowerID follows f.FolloweeID.
func (h *Hosted) Follow(ctx context.Context, f *model.Follow) error {
	err := h.call(ctx, "Follow", func(ctx context.Context) error {
		if f.ID == "" {
			f.ID = uuid.Must(uuid.NewV7()).String()
		}
		f.CreatedAt = now()
		return h.store.InsertFollow(ctx, f)
	})
	if err != nil {
		return err
	}

	f.Follower = h.publishProfile(ctx, f.FollowerID)
	f.Followee = h.publishProfile(ctx, f.FolloweeID)
	h.publish(ctx, model.TableFollows, model.EventInsert, f, nil, followKeys(f))

	h.notify(ctx, &model.Notification{
		ReceiverID: f.FolloweeID,
		SenderID:   f.FollowerID,
		Type:       model.NotificationFollow,
	})
	return nil
}

// Unfollow removes the follow of followeeID by followerID.
func (h *Hosted) Unfollow(ctx context.Context, followerID, followeeID string) error {
	var old *model.Follow
	err := h.call(ctx, "Unfollow", func(ctx context.Context) error {
		var err error
		old, err = h.store.DeleteFollow(ctx, followerID, followeeID)
		return err
	})
	if err != nil {
		return err
	}

	old.Follower = h.publishProfile(ctx, followerID)
	old.Followee = h.publishProfile(ctx, followeeID)
	h.publish(ctx, model.TableFollows, model.EventDelete, nil, old, followKeys(old))
	return nil
}

// ListPeople returns userID's followers and followees.
func (h *Hosted) ListPeople(ctx context.Context, userID string) (*model.People, error) {
	var people *model.People
	err := h.call(ctx, "ListPeople", func(ctx context.Context) error {
		var err error
		people, err = h.store.ListPeople(ctx, userID)
		return err
	})
	return people, err
}

// publishProfile emits the stored profile with fresh follow counts and
// returns it. It returns nil when the profile cannot be read.
func (h *Hosted) publishProfile(ctx context.Context, id string) *model.Profile {
	p, err := h.store.GetProfile(ctx, id)
	if err != nil {
		h.logger.Warn("failed to reload profile", zap.String("user_id", id), zap.Error(err))
		return nil
	}
	h.publish(ctx, model.TableProfiles, model.EventUpdate, p, nil, map[string]string{"id": p.ID})
	return p
}

// notify stores and publishes a notification. Self-notifications are
// dropped. The action it reports has already committed, so failures are
// logged and not returned.
func (h *Hosted) notify(ctx context.Context, n *model.Notification) {
	if n.ReceiverID == "" || n.ReceiverID == n.SenderID {
		return
	}

	name := "Someone"
	if sender, err := h.store.GetProfile(ctx, n.SenderID); err == nil {
		n.Sender = sender
		if sender.Name != "" {
			name = sender.Name
		}
	}
	switch n.Type {
	case model.NotificationLike:
		n.Message = name + " liked your post"
	case model.NotificationComment:
		n.Message = name + " commented on your post"
	case model.NotificationFollow:
		n.Message = name + " started following you"
	}

	err := h.call(ctx, "InsertNotification", func(ctx context.Context) error {
		n.ID = uuid.Must(uuid.NewV7()).String()
		n.CreatedAt = now()
		return h.store.InsertNotification(ctx, n)
	})
	if err != nil {
		h.logger.Warn("failed to store notification",
			zap.String("type", string(n.Type)),
			zap.String("receiver_id", n.ReceiverID),
			zap.Error(err),
		)
		return
	}
	h.publish(ctx, model.TableNotifications, model.EventInsert, n, nil, notificationKeys(n))
}

// notifyPostAuthor notifies the author of postID about actorID's action.
func (h *Hosted) notifyPostAuthor(ctx context.Context, postID, actorID string, typ model.NotificationType) {
	post, err := h.store.GetPost(ctx, postID)
	if err != nil {
		h.logger.Warn("failed to load post for notification", zap.String("post_id", postID), zap.Error(err))
		return
	}
	h.notify(ctx, &model.Notification{
		ReceiverID: post.UserID,
		SenderID:   actorID,
		Type:       typ,
		PostID:     postID,
	})
}

// ListNotifications returns a page of receiverID's notifications.
func (h *Hosted) ListNotifications(ctx context.Context, receiverID string, limit, offset int) ([]model.Notification, error) {
	var list []model.Notification
	err := h.call(ctx, "ListNotifications", func(ctx context.Context) error {
		var err error
		list, err = h.store.ListNotifications(ctx, receiverID, limit, offset)
		return err
	})
	return list, err
}

// CountUnreadNotifications counts receiverID's unread notifications.
func (h *Hosted) CountUnreadNotifications(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := h.call(ctx, "CountUnreadNotifications", func(ctx context.Context) error {
		var err error
		n, err = h.store.CountUnreadNotifications(ctx, receiverID)
		return err
	})
	return n, err
}

// MarkNotificationsRead flags receiverID's notifications read and publishes
// an UPDATE per changed row.
func (h *Hosted) MarkNotificationsRead(ctx context.Context, receiverID string) error {
	var changed []model.Notification
	err := h.call(ctx, "MarkNotificationsRead", func(ctx context.Context) error {
		var err error
		changed, err = h.store.MarkNotificationsRead(ctx, receiverID)
		return err
	})
	if err != nil {
		return err
	}
	for i := range changed {
		h.publish(ctx, model.TableNotifications, model.EventUpdate, &changed[i], nil, notificationKeys(&changed[i]))
	}
	return nil
}
