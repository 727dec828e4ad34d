package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

func (s *Store) InsertFollow(ctx context.Context, f *model.Follow) error {
	row := &followRow{ID: f.ID, FollowerID: f.FollowerID, FolloweeID: f.FolloweeID, CreatedAt: f.CreatedAt}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertFollow")
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	row := new(followRow)
	res, err := s.db.NewDelete().
		Model(row).
		Where("follower_id = ?", followerID).
		Where("followee_id = ?", followeeID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.DeleteFollow")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

func (s *Store) ListPeople(ctx context.Context, userID string) (*model.People, error) {
	var rows []followRow
	err := s.db.NewSelect().
		Model(&rows).
		WhereOr("follower_id = ?", userID).
		WhereOr("followee_id = ?", userID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.ListPeople")
	}

	ids := make([]string, 0, len(rows))
	for i := range rows {
		if rows[i].FollowerID == userID {
			ids = append(ids, rows[i].FolloweeID)
		} else {
			ids = append(ids, rows[i].FollowerID)
		}
	}
	byID, err := s.profilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &model.People{Followers: []model.Profile{}, Following: []model.Profile{}}
	for i, id := range ids {
		p := model.Profile{ID: id}
		if found, ok := byID[id]; ok {
			p = *found
		}
		if rows[i].FollowerID == userID {
			out.Following = append(out.Following, p)
		} else {
			out.Followers = append(out.Followers, p)
		}
	}
	return out, nil
}

func (s *Store) profilesByID(ctx context.Context, ids []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []profileRow
	if err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.profilesByID")
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toModel()
	}
	return out, nil
}

func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) error {
	row := &notificationRow{
		ID:         n.ID,
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Type:       string(n.Type),
		PostID:     n.PostID,
		Message:    n.Message,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertNotification")
}

func (s *Store) ListNotifications(ctx context.Context, receiverID string, limit, offset int) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("receiver_id = ?", receiverID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.ListNotifications")
	}

	senders := make([]string, len(rows))
	for i := range rows {
		senders[i] = rows[i].SenderID
	}
	byID, err := s.profilesByID(ctx, senders)
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
		out[i].Sender = byID[rows[i].SenderID]
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, receiverID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*notificationRow)(nil)).
		Where("receiver_id = ?", receiverID).
		Where("read = FALSE").
		Count(ctx)
	if err != nil {
		return 0, translate(err, "postgres.CountUnreadNotifications")
	}
	return n, nil
}

func (s *Store) MarkNotificationsRead(ctx context.Context, receiverID string) ([]model.Notification, error) {
	var rows []notificationRow
	_, err := s.db.NewUpdate().
		Table("notifications").
		Set("read = TRUE").
		Where("receiver_id = ?", receiverID).
		Where("read = FALSE").
		Returning("*").
		Exec(ctx, &rows)
	if err != nil {
		return nil, translate(err, "postgres.MarkNotificationsRead")
	}
	out := make([]model.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}
