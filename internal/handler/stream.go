package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/chat"
	"github.com/workhub-social/chatsync/internal/client"
	"github.com/workhub-social/chatsync/internal/feed"
	"github.com/workhub-social/chatsync/internal/jobs"
	"github.com/workhub-social/chatsync/internal/middleware"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/internal/timeline"
	"github.com/workhub-social/chatsync/pkg/logger"
	"github.com/workhub-social/chatsync/pkg/metrics"
)

// pendingEvents bounds the changes queued for one slow SSE connection.
// Past it the connection gets a fresh snapshot instead.
const pendingEvents = 256

// StreamHandler serves the live screens over SSE.
type StreamHandler struct {
	registry  *client.Registry
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(registry *client.Registry, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		registry:  registry,
		heartbeat: heartbeat,
		logger:    log,
	}
}

// SessionEvent tells the client which session id to address.
type SessionEvent struct {
	SessionID      string `json:"session_id"`
	Kind           string `json:"kind"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChannelStatus reports one feed channel's state.
type ChannelStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func channelStatus(channels []*feed.Channel) []ChannelStatus {
	out := make([]ChannelStatus, 0, len(channels))
	for _, ch := range channels {
		st := ChannelStatus{Name: ch.Name(), State: ch.State().String()}
		if err := ch.Err(); err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// sse writes events to one streaming response.
type sse struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE sets the streaming headers. It returns false, after writing an
// error response, when w cannot stream.
func startSSE(w http.ResponseWriter) (*sse, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	// Streams outlive the server's write timeout.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.WriteHeader(http.StatusOK)

	return &sse{w: w, flusher: flusher}, true
}

func (s *sse) send(event string, data interface{}) error {
	return sendSSEEvent(s.w, s.flusher, event, data)
}

func (s *sse) heartbeat() error {
	return s.send("heartbeat", &model.HeartbeatEvent{Timestamp: time.Now().UTC()})
}

// Inbox handles GET /api/v1/inbox/stream. It pushes the conversation list
// with unread counts whenever it changes.
func (h *StreamHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, release, err := h.registry.Acquire(ctx, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer release()

	stream, ok := startSSE(w)
	if !ok {
		writeError(w, h.logger, errStreamingUnsupported)
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// Only the latest list matters, so a full slot is replaced.
	updates := make(chan client.InboxUpdate, 1)
	remove := c.Observe(func(u client.InboxUpdate) {
		select {
		case updates <- u:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- u:
			default:
			}
		}
	})
	defer remove()

	stream.send("connected", map[string]string{"user_id": userID})
	stream.send("channels", channelStatus(c.Channels()))
	stream.send("inbox", c.Conversations())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("user_id", userID))
			return
		case u := <-updates:
			if err := stream.send("inbox", u); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		}
	}
}

// Chat handles GET /api/v1/conversations/{id}/stream. It mounts a chat
// screen for the connection and pushes every buffer change.
func (h *StreamHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, release, err := h.registry.Acquire(ctx, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer release()

	screen, err := c.OpenChat(ctx, conversationID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer screen.Close()

	stream, ok := startSSE(w)
	if !ok {
		writeError(w, h.logger, errStreamingUnsupported)
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	changes := make(chan chat.Change, pendingEvents)
	resync := make(chan struct{}, 1)
	screen.Stream().Observe(func(ch chat.Change) {
		select {
		case changes <- ch:
		default:
			select {
			case resync <- struct{}{}:
			default:
			}
		}
	})

	h.registry.Register(screen)
	defer h.registry.Unregister(screen.ID())

	stream.send("session", &SessionEvent{SessionID: screen.ID(), Kind: screen.Kind(), ConversationID: conversationID})
	stream.send("channels", channelStatus(screen.Channels()))
	stream.send("messages", screen.Messages())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected",
				zap.String("session_id", screen.ID()),
				zap.String("conversation_id", conversationID),
			)
			return
		case ch := <-changes:
			if err := stream.send("message", ch); err != nil {
				return
			}
		case <-resync:
			h.logger.Warn("SSE client fell behind, resending messages", zap.String("session_id", screen.ID()))
			if err := stream.send("messages", screen.Messages()); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		}
	}
}

// Home handles GET /api/v1/posts/stream. ?user_id= narrows the feed to one
// author.
func (h *StreamHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	authorID := r.URL.Query().Get("user_id")

	c, release, err := h.registry.Acquire(ctx, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer release()

	screen, err := c.OpenHome(ctx, authorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer screen.Close()

	stream, ok := startSSE(w)
	if !ok {
		writeError(w, h.logger, errStreamingUnsupported)
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	changes := make(chan timeline.Change, pendingEvents)
	resync := make(chan struct{}, 1)
	screen.Timeline().Observe(func(ch timeline.Change) {
		select {
		case changes <- ch:
		default:
			select {
			case resync <- struct{}{}:
			default:
			}
		}
	})

	h.registry.Register(screen)
	defer h.registry.Unregister(screen.ID())

	stream.send("session", &SessionEvent{SessionID: screen.ID(), Kind: screen.Kind()})
	stream.send("channels", channelStatus(screen.Channels()))
	stream.send("posts", screen.Timeline().Snapshot())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", screen.ID()))
			return
		case ch := <-changes:
			if err := stream.send("post", ch); err != nil {
				return
			}
		case <-resync:
			if err := stream.send("posts", screen.Timeline().Snapshot()); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		}
	}
}

// Jobs handles GET /api/v1/jobs/stream. ?category= and ?company= narrow the
// board.
func (h *StreamHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, release, err := h.registry.Acquire(ctx, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer release()

	screen, err := c.OpenJobs(ctx, jobQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer screen.Close()

	stream, ok := startSSE(w)
	if !ok {
		writeError(w, h.logger, errStreamingUnsupported)
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	changes := make(chan jobs.Change, pendingEvents)
	resync := make(chan struct{}, 1)
	screen.Board().Observe(func(ch jobs.Change) {
		select {
		case changes <- ch:
		default:
			select {
			case resync <- struct{}{}:
			default:
			}
		}
	})

	h.registry.Register(screen)
	defer h.registry.Unregister(screen.ID())

	stream.send("session", &SessionEvent{SessionID: screen.ID(), Kind: screen.Kind()})
	stream.send("channels", channelStatus(screen.Channels()))
	stream.send("jobs", screen.Board().Snapshot())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", screen.ID()))
			return
		case ch := <-changes:
			if err := stream.send("job", ch); err != nil {
				return
			}
		case <-resync:
			if err := stream.send("jobs", screen.Board().Snapshot()); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		}
	}
}

// More handles POST /api/v1/sessions/{id}/more. It pages an open screen:
// older messages for a chat, the next posts or jobs for a feed screen.
func (h *StreamHandler) More(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	session, ok := h.registry.Lookup(chi.URLParam(r, "id"), userID)
	if !ok {
		writeError(w, h.logger, errSessionNotFound)
		return
	}

	switch s := session.(type) {
	case *client.ChatScreen:
		msgs, err := s.LoadOlder(ctx)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, &model.ListMessagesResponse{Messages: msgs, HasMore: len(msgs) > 0})
	case *client.HomeScreen:
		posts, err := s.LoadMore(ctx)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, &model.ListPostsResponse{Posts: posts, HasMore: s.Timeline().HasMore()})
	case *client.JobsScreen:
		added, err := s.LoadMore(ctx)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, &model.ListJobsResponse{Jobs: added, HasMore: s.Board().HasMore()})
	default:
		writeError(w, h.logger, errSessionNotFound)
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
