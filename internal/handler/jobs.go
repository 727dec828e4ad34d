package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workhub-social/chatsync/internal/middleware"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// JobHandler handles job board endpoints.
type JobHandler struct {
	jobs     *service.JobService
	pageSize int
	logger   *logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobSvc *service.JobService, pageSize int, log *logger.Logger) *JobHandler {
	return &JobHandler{
		jobs:     jobSvc,
		pageSize: pageSize,
		logger:   log,
	}
}

func jobQuery(r *http.Request) model.JobQuery {
	return model.JobQuery{
		Category:    r.URL.Query().Get("category"),
		CompanyName: r.URL.Query().Get("company"),
	}
}

// List handles GET /api/v1/jobs?category=&company=
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := jobQuery(r)
	q.Limit, q.Offset = paging(r, h.pageSize, 100)
	jobs, err := h.jobs.ListJobs(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, &model.ListJobsResponse{Jobs: jobs, HasMore: len(jobs) == q.Limit})
}

// Get handles GET /api/v1/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Create handles POST /api/v1/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

// Update handles PUT /api/v1/jobs/{id}
func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.save(w, r, jobID, http.StatusOK)
}

func (h *JobHandler) save(w http.ResponseWriter, r *http.Request, jobID string, status int) {
	var req model.SaveJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.ID = jobID
	if req.File != nil {
		if err := middleware.ValidateUpload(*req.File); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	job, err := h.jobs.Save(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, status, job)
}

// Like handles POST /api/v1/jobs/{id}/like
func (h *JobHandler) Like(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.jobs.Like(r.Context(), middleware.GetUserID(r.Context()), jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlike handles DELETE /api/v1/jobs/{id}/like
func (h *JobHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.jobs.Unlike(r.Context(), middleware.GetUserID(r.Context()), jobID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
