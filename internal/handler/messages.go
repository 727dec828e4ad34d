package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workhub-social/chatsync/internal/client"
	"github.com/workhub-social/chatsync/internal/middleware"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/service"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// SessionHeader names the chat session a send should go through.
const SessionHeader = "X-Session-ID"

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	registry      *client.Registry
	pageSize      int
	logger        *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	msgSvc *service.MessageService,
	convSvc *service.ConversationService,
	registry *client.Registry,
	pageSize int,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:      msgSvc,
		conversations: convSvc,
		registry:      registry,
		pageSize:      pageSize,
		logger:        log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages. Messages come back
// oldest first; offset skips the newest ones.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.conversations.Get(ctx, userID, conversationID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	limit, offset := paging(r, h.pageSize, 100)
	msgs, err := h.messages.List(ctx, conversationID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		Messages: msgs,
		HasMore:  len(msgs) == limit,
	})
}

// Send handles POST /api/v1/conversations/{id}/messages. With an open chat
// session named in X-Session-ID the send goes through that session, so the
// message shows up there immediately and is confirmed or rolled back.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := middleware.ValidateMessage(req.Text, req.Attachments); err != nil {
		writeError(w, h.logger, err)
		return
	}

	draft := model.Draft{
		ConversationID: conversationID,
		SenderID:       userID,
		Body:           req.Text,
		Attachments:    req.Attachments,
		ClientID:       req.ClientID,
	}

	var (
		msg *model.Message
		err error
	)
	if screen, ok := h.registry.Chat(r.Header.Get(SessionHeader), userID); ok && screen.ConversationID() == conversationID {
		msg, err = screen.Send(ctx, draft)
	} else {
		msg, err = h.messages.Send(ctx, draft)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
