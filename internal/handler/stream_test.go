package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub-social/chatsync/internal/chat"
	"github.com/workhub-social/chatsync/internal/client"
	"github.com/workhub-social/chatsync/internal/model"
)

type sseEvent struct {
	name string
	data string
}

// openStream connects to an SSE endpoint and returns a channel of parsed
// events. The connection closes when the test ends.
func openStream(t *testing.T, srv *httptest.Server, userID, path string) <-chan sseEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, userID))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 64)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				events <- ev
				ev = sseEvent{}
			}
		}
	}()
	return events
}

// next returns the first event named name, skipping others.
func next(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed while waiting for %q", name)
			if ev.name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q event", name)
		}
	}
}

func (s *testServer) post(t *testing.T, srv *httptest.Server, userID, path, sessionID string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, userID))
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStreamHandler_Chat(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	conv := s.conversation(t, "alice", "bob")

	events := openStream(t, srv, "alice", "/api/v1/conversations/"+conv.ID+"/stream")

	var session SessionEvent
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "session").data), &session))
	assert.Equal(t, "chat", session.Kind)
	assert.Equal(t, conv.ID, session.ConversationID)

	var initial []model.Message
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "messages").data), &initial))
	assert.Empty(t, initial)

	resp := s.post(t, srv, "alice", "/api/v1/conversations/"+conv.ID+"/messages", session.SessionID,
		model.SendMessageRequest{Text: "hi", ClientID: "c-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var first chat.Change
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "message").data), &first))
	assert.Equal(t, chat.ChangeUpsert, first.Kind)
	assert.True(t, first.Message.Pending, "the provisional entry shows up first")
	assert.Equal(t, "c-1", first.Message.ClientID)

	for {
		var ch chat.Change
		require.NoError(t, json.Unmarshal([]byte(next(t, events, "message").data), &ch))
		if !ch.Message.Pending {
			assert.Equal(t, "c-1", ch.Message.ClientID)
			assert.Equal(t, "hi", ch.Message.Body)
			break
		}
	}

	resp = s.post(t, srv, "alice", "/api/v1/sessions/"+session.SessionID+"/more", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.post(t, srv, "bob", "/api/v1/sessions/"+session.SessionID+"/more", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "sessions belong to their viewer")
}

func TestStreamHandler_ChatOutsider(t *testing.T) {
	s := newTestServer(t)
	conv := s.conversation(t, "alice", "bob")

	rec := s.do(t, "carol", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamHandler_Inbox(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	conv := s.conversation(t, "alice", "bob")

	events := openStream(t, srv, "bob", "/api/v1/inbox/stream")
	next(t, events, "connected")

	var update client.InboxUpdate
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "inbox").data), &update))
	require.Len(t, update.Conversations, 1)
	assert.Zero(t, update.TotalUnread)

	resp := s.post(t, srv, "alice", "/api/v1/conversations/"+conv.ID+"/messages", "", model.SendMessageRequest{Text: "ping"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for update.TotalUnread == 0 {
		require.NoError(t, json.Unmarshal([]byte(next(t, events, "inbox").data), &update))
	}
	assert.Equal(t, 1, update.TotalUnread)
	assert.Equal(t, "ping", update.Conversations[0].LastMessage)
}

func TestStreamHandler_MoreUnknownSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "alice", http.MethodPost, "/api/v1/sessions/nope/more", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamHandler_InboxFollowsAndNotifications(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	require.Equal(t, http.StatusOK, s.do(t, "bob", http.MethodPut, "/api/v1/profile", model.Profile{Name: "Bob"}).Code)

	events := openStream(t, srv, "bob", "/api/v1/inbox/stream")
	var update client.InboxUpdate
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "inbox").data), &update))
	assert.Empty(t, update.People.Followers)

	resp := s.post(t, srv, "alice", "/api/v1/users/bob/follow", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for update.UnreadNotifications == 0 || len(update.People.Followers) == 0 {
		require.NoError(t, json.Unmarshal([]byte(next(t, events, "inbox").data), &update))
	}
	assert.Equal(t, 1, update.UnreadNotifications)
	assert.Equal(t, "alice", update.People.Followers[0].ID)

	resp = s.post(t, srv, "bob", "/api/v1/notifications/read", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	for update.UnreadNotifications != 0 {
		require.NoError(t, json.Unmarshal([]byte(next(t, events, "inbox").data), &update))
	}
}

func TestStreamHandler_Jobs(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	events := openStream(t, srv, "bob", "/api/v1/jobs/stream?category=design")

	var session SessionEvent
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "session").data), &session))
	assert.Equal(t, "jobs", session.Kind)
	var initial []model.Job
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "jobs").data), &initial))
	assert.Empty(t, initial)

	resp := s.post(t, srv, "alice", "/api/v1/jobs", "", model.SaveJobRequest{Title: "Sales lead", CompanyName: "Acme", Category: "sales"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.post(t, srv, "alice", "/api/v1/jobs", "", model.SaveJobRequest{Title: "Designer", CompanyName: "Acme", Category: "design"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var change struct {
		Kind string    `json:"kind"`
		Job  model.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal([]byte(next(t, events, "job").data), &change))
	assert.Equal(t, "upsert", change.Kind)
	assert.Equal(t, "Designer", change.Job.Title, "jobs outside the category are not pushed")

	resp = s.post(t, srv, "bob", "/api/v1/sessions/"+session.SessionID+"/more", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
