package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
)

func (s *Store) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, error) {
	var rows []jobRow
	sel := s.db.NewSelect().Model(&rows)
	if q.Category != "" {
		sel = sel.Where("category = ?", q.Category)
	}
	if q.CompanyName != "" {
		sel = sel.Where("company_name = ?", q.CompanyName)
	}
	sel = sel.OrderExpr("created_at DESC, id DESC").Offset(q.Offset)
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, translate(err, "postgres.ListJobs")
	}
	return s.joinJobs(ctx, rows)
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := jobRow{}
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, translate(err, "postgres.GetJob")
	}
	jobs, err := s.joinJobs(ctx, []jobRow{row})
	if err != nil {
		return nil, err
	}
	return &jobs[0], nil
}

func (s *Store) joinJobs(ctx context.Context, rows []jobRow) ([]model.Job, error) {
	if len(rows) == 0 {
		return []model.Job{}, nil
	}

	jobIDs := make([]string, len(rows))
	authorIDs := make([]string, len(rows))
	for i := range rows {
		jobIDs[i] = rows[i].ID
		authorIDs[i] = rows[i].UserID
	}
	authors, err := s.profilesByID(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	var likes []jobLikeRow
	if err := s.db.NewSelect().Model(&likes).Where("job_id IN (?)", bun.In(jobIDs)).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, translate(err, "postgres.joinJobs.Likes")
	}

	out := make([]model.Job, len(rows))
	index := make(map[string]int, len(rows))
	for i := range rows {
		j := rows[i].toModel()
		j.User = authors[j.UserID]
		j.Likes = []model.JobLike{}
		out[i] = *j
		index[j.ID] = i
	}
	for i := range likes {
		j := index[likes[i].JobID]
		out[j].Likes = append(out[j].Likes, *likes[i].toModel())
	}
	return out, nil
}

func (s *Store) InsertJob(ctx context.Context, j *model.Job) error {
	_, err := s.db.NewInsert().Model(jobFromModel(j)).Exec(ctx)
	return translate(err, "postgres.InsertJob")
}

func (s *Store) UpdateJob(ctx context.Context, j *model.Job) (*model.Job, error) {
	row := jobFromModel(j)
	res, err := s.db.NewUpdate().
		Model(row).
		ExcludeColumn("id", "user_id", "created_at").
		Where("id = ?", j.ID).
		Where("user_id = ?", j.UserID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.UpdateJob")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}

func (s *Store) InsertJobLike(ctx context.Context, l *model.JobLike) error {
	row := &jobLikeRow{ID: l.ID, JobID: l.JobID, UserID: l.UserID, CreatedAt: l.CreatedAt}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return translate(err, "postgres.InsertJobLike")
}

func (s *Store) DeleteJobLike(ctx context.Context, jobID, userID string) (*model.JobLike, error) {
	row := new(jobLikeRow)
	res, err := s.db.NewDelete().
		Model(row).
		Where("job_id = ?", jobID).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translate(err, "postgres.DeleteJobLike")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}
	return row.toModel(), nil
}
