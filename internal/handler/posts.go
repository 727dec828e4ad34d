package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workhub-social/chatsync/internal/middleware"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// PostHandler handles post, comment, like and profile endpoints.
type PostHandler struct {
	posts    *service.PostService
	messages *service.MessageService
	pageSize int
	logger   *logger.Logger
}

// NewPostHandler creates a new post handler.
func NewPostHandler(postSvc *service.PostService, msgSvc *service.MessageService, pageSize int, log *logger.Logger) *PostHandler {
	return &PostHandler{
		posts:    postSvc,
		messages: msgSvc,
		pageSize: pageSize,
		logger:   log,
	}
}

// List handles GET /api/v1/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, h.pageSize, 100)
	posts, err := h.posts.List(r.Context(), limit, offset, r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, &model.ListPostsResponse{Posts: posts, HasMore: len(posts) == limit})
}

// Create handles POST /api/v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := middleware.ValidatePost(req.Body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.File != nil {
		if err := middleware.ValidateUpload(*req.File); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	post, err := h.posts.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Delete handles DELETE /api/v1/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.posts.Delete(r.Context(), middleware.GetUserID(r.Context()), postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/v1/posts/{id}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.posts.Like(r.Context(), middleware.GetUserID(r.Context()), postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlike handles DELETE /api/v1/posts/{id}/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.posts.Unlike(r.Context(), middleware.GetUserID(r.Context()), postID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comment handles POST /api/v1/posts/{id}/comments
func (h *PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(postID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req model.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.posts.Comment(r.Context(), middleware.GetUserID(r.Context()), postID, &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// DeleteComment handles DELETE /api/v1/comments/{id}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(commentID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.posts.DeleteComment(r.Context(), middleware.GetUserID(r.Context()), commentID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /api/v1/users/{id}
func (h *PostHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.messages.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/v1/profile
func (h *PostHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.posts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
