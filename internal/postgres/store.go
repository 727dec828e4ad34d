package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// Store is a backend.Store on PostgreSQL.
type Store struct {
	db     *bun.DB
	logger *logger.Logger
}

var _ backend.Store = (*Store)(nil)

// NewStore creates a store over db.
func NewStore(db *bun.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log.Named("postgres")}
}

func (s *Store) FindConversation(ctx context.Context, a, b string) (*model.Conversation, error) {
	row := new(conversationRow)
	err := s.db.NewSelect().
		Model(row).
		WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("user_a_id = ? AND user_b_id = ?", a, b)
		}).
		WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("user_a_id = ? AND user_b_id = ?", b, a)
		}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.FindConversation")
	}
	return row.toModel(), nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := new(conversationRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.GetConversation")
	}
	return row.toModel(), nil
}

func (s *Store) InsertConversation(ctx context.Context, conv *model.Conversation) error {
	_, err := s.db.NewInsert().Model(conversationFromModel(conv)).Exec(ctx)
	return translate(err, "postgres.InsertConversation")
}

func (s *Store) UpdateConversationLastMessage(ctx context.Context, id, text, senderID string, at time.Time) (*model.Conversation, error) {
	row := new(conversationRow)
	res, err := s.db.NewUpdate().
		Model(row).
		Set("last_message = ?", text).
		Set("last_sender_id = ?", senderID).
		Set("last_message_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.UpdateConversationLastMessage")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

func (s *Store) ListUserConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	var rows []summaryRow
	err := s.db.NewRaw(`
		SELECT c.id,
			o.other_id,
			COALESCE(p.name, '') AS other_name,
			COALESCE(p.image, '') AS other_image,
			c.last_message,
			COALESCE(c.last_sender_id, '') AS last_sender_id,
			c.updated_at
		FROM conversations AS c
		CROSS JOIN LATERAL (
			SELECT CASE WHEN c.user_a_id = ? THEN c.user_b_id ELSE c.user_a_id END AS other_id
		) AS o
		LEFT JOIN profiles AS p ON p.id = o.other_id
		WHERE c.user_a_id = ? OR c.user_b_id = ?
		ORDER BY c.updated_at DESC, c.id ASC`,
		userID, userID, userID,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, translate(err, "postgres.ListUserConversations")
	}

	list := make([]model.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		list = append(list, model.ConversationSummary{
			ID:           r.ID,
			OtherUser:    model.Profile{ID: r.OtherID, Name: r.OtherName, Image: r.OtherImage},
			LastMessage:  r.LastMessage,
			LastSenderID: r.LastSenderID,
			UpdatedAt:    r.UpdatedAt.UTC(),
		})
	}
	return list, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) error {
	row := &messageRow{
		ID:             msg.ID,
		ClientID:       msg.ClientID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
		Read:           msg.Read,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		if len(msg.Attachments) == 0 {
			return nil
		}
		atts := make([]attachmentRow, len(msg.Attachments))
		for i, a := range msg.Attachments {
			atts[i] = attachmentRow{
				ID:        a.ID,
				MessageID: msg.ID,
				Type:      string(a.Type),
				URL:       a.URL,
				Name:      a.Name,
				Size:      a.Size,
			}
		}
		_, err := tx.NewInsert().Model(&atts).Exec(ctx)
		return err
	})
	return translate(err, "postgres.InsertMessage")
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	var rows []messageRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", conversationID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.ListMessages")
	}
	if len(rows) == 0 {
		return []model.Message{}, nil
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var atts []attachmentRow
	err = s.db.NewSelect().
		Model(&atts).
		Where("message_id IN (?)", bun.In(ids)).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.ListMessages.Attachments")
	}
	byMessage := make(map[string][]model.Attachment, len(atts))
	for i := range atts {
		byMessage[atts[i].MessageID] = append(byMessage[atts[i].MessageID], atts[i].toModel())
	}

	out := make([]model.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
		out[i].Attachments = byMessage[rows[i].ID]
	}
	return out, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, conversationID, viewerID string) ([]model.Message, error) {
	var rows []messageRow
	_, err := s.db.NewUpdate().
		Table("messages").
		Set("isread = TRUE").
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", viewerID).
		Where("isread = FALSE").
		Returning("*").
		Exec(ctx, &rows)
	if err != nil {
		return nil, translate(err, "postgres.MarkMessagesRead")
	}

	out := make([]model.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := new(profileRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.GetProfile")
	}
	p := row.toModel()

	var err error
	p.FollowerCount, err = s.db.NewSelect().Model((*followRow)(nil)).Where("followee_id = ?", id).Count(ctx)
	if err != nil {
		return nil, translate(err, "postgres.GetProfile.Followers")
	}
	p.FollowingCount, err = s.db.NewSelect().Model((*followRow)(nil)).Where("follower_id = ?", id).Count(ctx)
	if err != nil {
		return nil, translate(err, "postgres.GetProfile.Following")
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	row := &profileRow{ID: p.ID, Name: p.Name, Image: p.Image, Bio: p.Bio}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("image = EXCLUDED.image").
		Set("bio = EXCLUDED.bio").
		Exec(ctx)
	return translate(err, "postgres.UpsertProfile")
}

func (s *Store) ListPosts(ctx context.Context, limit, offset int, userID string) ([]model.Post, error) {
	var rows []postRow
	q := s.db.NewSelect().Model(&rows)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	err := q.OrderExpr("created_at DESC, id DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, translate(err, "postgres.ListPosts")
	}
	return s.joinPosts(ctx, rows)
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := postRow{}
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.GetPost")
	}
	posts, err := s.joinPosts(ctx, []postRow{row})
	if err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// joinPosts attaches authors, likes and comments to rows.
func (s *Store) joinPosts(ctx context.Context, rows []postRow) ([]model.Post, error) {
	if len(rows) == 0 {
		return []model.Post{}, nil
	}

	postIDs := make([]string, len(rows))
	authorIDs := make([]string, 0, len(rows))
	for i := range rows {
		postIDs[i] = rows[i].ID
		authorIDs = append(authorIDs, rows[i].UserID)
	}

	var authors []profileRow
	if err := s.db.NewSelect().Model(&authors).Where("id IN (?)", bun.In(authorIDs)).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.joinPosts.Authors")
	}
	var likes []likeRow
	if err := s.db.NewSelect().Model(&likes).Where("post_id IN (?)", bun.In(postIDs)).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, translate(err, "postgres.joinPosts.Likes")
	}
	var comments []commentRow
	if err := s.db.NewSelect().Model(&comments).Where("post_id IN (?)", bun.In(postIDs)).OrderExpr("created_at DESC").Scan(ctx); err != nil {
		return nil, translate(err, "postgres.joinPosts.Comments")
	}

	authorByID := make(map[string]*model.Profile, len(authors))
	for i := range authors {
		authorByID[authors[i].ID] = authors[i].toModel()
	}

	out := make([]model.Post, len(rows))
	for i := range rows {
		p := rows[i].toModel()
		p.User = authorByID[p.UserID]
		p.Likes = []model.Like{}
		p.Comments = []model.Comment{}
		out[i] = *p
	}
	index := make(map[string]int, len(out))
	for i := range out {
		index[out[i].ID] = i
	}
	for i := range likes {
		j := index[likes[i].PostID]
		out[j].Likes = append(out[j].Likes, *likes[i].toModel())
	}
	for i := range comments {
		j := index[comments[i].PostID]
		out[j].Comments = append(out[j].Comments, *comments[i].toModel())
	}
	return out, nil
}

func (s *Store) InsertPost(ctx context.Context, p *model.Post) error {
	row := &postRow{ID: p.ID, UserID: p.UserID, Body: p.Body, File: p.File, CreatedAt: p.CreatedAt}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertPost")
}

func (s *Store) DeletePost(ctx context.Context, id, userID string) (*model.Post, error) {
	row := new(postRow)
	res, err := s.db.NewDelete().
		Model(row).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.DeletePost")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

func (s *Store) InsertLike(ctx context.Context, l *model.Like) error {
	row := &likeRow{ID: l.ID, PostID: l.PostID, UserID: l.UserID, CreatedAt: l.CreatedAt}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertLike")
}

func (s *Store) DeleteLike(ctx context.Context, postID, userID string) (*model.Like, error) {
	row := new(likeRow)
	res, err := s.db.NewDelete().
		Model(row).
		Where("post_id = ?", postID).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.DeleteLike")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

func (s *Store) InsertComment(ctx context.Context, c *model.Comment) error {
	row := &commentRow{ID: c.ID, PostID: c.PostID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertComment")
}

func (s *Store) DeleteComment(ctx context.Context, id, userID string) (*model.Comment, error) {
	row := new(commentRow)
	res, err := s.db.NewDelete().
		Model(row).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.DeleteComment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
