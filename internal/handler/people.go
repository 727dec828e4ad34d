package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workhub-social/chatsync/internal/middleware"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// PeopleHandler handles follow and notification endpoints.
type PeopleHandler struct {
	people *service.PeopleService
	logger *logger.Logger
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(peopleSvc *service.PeopleService, log *logger.Logger) *PeopleHandler {
	return &PeopleHandler{
		people: peopleSvc,
		logger: log,
	}
}

// Follow handles POST /api/v1/users/{id}/follow
func (h *PeopleHandler) Follow(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(otherID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.people.Follow(r.Context(), middleware.GetUserID(r.Context()), otherID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unfollow handles DELETE /api/v1/users/{id}/follow
func (h *PeopleHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(otherID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.people.Unfollow(r.Context(), middleware.GetUserID(r.Context()), otherID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// People handles GET /api/v1/users/{id}/people
func (h *PeopleHandler) People(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	people, err := h.people.People(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// Notifications handles GET /api/v1/notifications
func (h *PeopleHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 20, 100)
	resp, err := h.people.Notifications(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReadNotifications handles POST /api/v1/notifications/read
func (h *PeopleHandler) ReadNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.people.ReadNotifications(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
