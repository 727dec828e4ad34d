package postgres

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		model       any
		foreignKeys []string
	}{
		{model: (*profileRow)(nil)},
		{model: (*conversationRow)(nil)},
		{
			model:       (*messageRow)(nil),
			foreignKeys: []string{`("conversation_id") REFERENCES "conversations" ("id") ON DELETE CASCADE`},
		},
		{
			model:       (*attachmentRow)(nil),
			foreignKeys: []string{`("message_id") REFERENCES "messages" ("id") ON DELETE CASCADE`},
		},
		{model: (*postRow)(nil)},
		{
			model:       (*likeRow)(nil),
			foreignKeys: []string{`("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE`},
		},
		{
			model:       (*commentRow)(nil),
			foreignKeys: []string{`("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE`},
		},
		{model: (*followRow)(nil)},
		{model: (*notificationRow)(nil)},
		{model: (*jobRow)(nil)},
		{
			model:       (*jobLikeRow)(nil),
			foreignKeys: []string{`("job_id") REFERENCES "jobs" ("id") ON DELETE CASCADE`},
		},
	}

	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return errors.Wrapf(err, "postgres.Migrate.CreateTable %T", t.model)
		}
	}

	indexes := []string{
		// One conversation per unordered pair of users.
		`CREATE UNIQUE INDEX IF NOT EXISTS conversations_pair_idx
			ON conversations (LEAST(user_a_id, user_b_id), GREATEST(user_a_id, user_b_id))`,
		`CREATE INDEX IF NOT EXISTS conversations_user_a_idx ON conversations (user_a_id)`,
		`CREATE INDEX IF NOT EXISTS conversations_user_b_idx ON conversations (user_b_id)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS attachments_message_idx ON attachments (message_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS likes_post_user_idx ON likes (post_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS comments_post_idx ON comments (post_id)`,
		`CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS follows_pair_idx ON follows (follower_id, followee_id)`,
		`CREATE INDEX IF NOT EXISTS follows_followee_idx ON follows (followee_id)`,
		`CREATE INDEX IF NOT EXISTS notifications_receiver_created_idx ON notifications (receiver_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS jobs_created_idx ON jobs (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS jobs_category_idx ON jobs (category)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS job_likes_job_user_idx ON job_likes (job_id, user_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "postgres.Migrate.CreateIndex")
		}
	}
	return nil
}
