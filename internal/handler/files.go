package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// FileHandler serves stored attachments and post files.
type FileHandler struct {
	blobs  backend.BlobReader
	logger *logger.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(blobs backend.BlobReader, log *logger.Logger) *FileHandler {
	return &FileHandler{blobs: blobs, logger: log}
}

// Get handles GET /files/*
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, h.logger, errFileNotFound)
		return
	}

	data, contentType, err := h.blobs.Get(r.Context(), path)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, h.logger, errFileNotFound)
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
