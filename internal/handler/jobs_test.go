package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/model"
)

func TestJobHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/v1/jobs", model.SaveJobRequest{
		Title:       "Designer",
		CompanyName: "Acme",
		Category:    "design",
		File:        &model.Upload{Type: model.AttachmentImage, Name: "logo.gif", Data: []byte("GIF89a....")},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode[model.Job](t, rec)
	assert.Equal(t, model.JobOpen, job.Status)
	assert.Contains(t, job.File, "jobImages/alice/")

	rec = s.do(t, "alice", http.MethodPost, "/api/v1/jobs", model.SaveJobRequest{Title: "No company", Category: "design"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "bob", http.MethodPut, "/api/v1/jobs/"+job.ID, model.SaveJobRequest{Title: "Mine now", CompanyName: "Acme", Category: "design"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the owner edits a job")

	rec = s.do(t, "alice", http.MethodPut, "/api/v1/jobs/"+job.ID, model.SaveJobRequest{Title: "Senior Designer", CompanyName: "Acme", Category: "design"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Job](t, rec)
	assert.Equal(t, "Senior Designer", updated.Title)
	assert.Equal(t, job.File, updated.File, "the file is kept")

	like := "/api/v1/jobs/" + job.ID + "/like"
	assert.Equal(t, http.StatusNoContent, s.do(t, "bob", http.MethodPost, like, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, "bob", http.MethodPost, like, nil).Code)

	rec = s.do(t, "bob", http.MethodGet, "/api/v1/jobs?category=design", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.ListJobsResponse](t, rec)
	require.Len(t, list.Jobs, 1)
	assert.Len(t, list.Jobs[0].Likes, 1)
	assert.False(t, list.HasMore)

	rec = s.do(t, "bob", http.MethodGet, "/api/v1/jobs?company=Other", nil)
	assert.Empty(t, decode[model.ListJobsResponse](t, rec).Jobs)

	rec = s.do(t, "bob", http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Senior Designer", decode[model.Job](t, rec).Title)

	assert.Equal(t, http.StatusNoContent, s.do(t, "bob", http.MethodDelete, like, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "bob", http.MethodDelete, like, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "bob", http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "bob", http.MethodGet, "/api/v1/jobs/nope", nil).Code)
}
