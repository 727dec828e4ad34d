package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// Session is a mounted screen addressable by id.
type Session interface {
	ID() string
	Kind() string
	ViewerID() string
	Close()
}

type clientRef struct {
	client *Client
	refs   int
}

// Registry shares one Client per viewer between connections and keeps the
// mounted screens addressable by session id.
type Registry struct {
	deps   Deps
	logger *logger.Logger

	mu       sync.Mutex
	clients  map[string]*clientRef
	sessions map[string]Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		logger:   deps.Logger.Named("registry"),
		clients:  make(map[string]*clientRef),
		sessions: make(map[string]Session),
	}
}

// Acquire returns viewerID's client, starting it on first use. The returned
// release function must be called once the caller is done with it.
func (r *Registry) Acquire(ctx context.Context, viewerID string) (*Client, func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, apperrors.ErrSessionClosed
	}
	if ref, ok := r.clients[viewerID]; ok {
		ref.refs++
		r.mu.Unlock()
		return ref.client, r.releaser(viewerID, ref), nil
	}
	r.mu.Unlock()

	c := New(viewerID, r.deps)
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		go c.Close()
		return nil, nil, apperrors.ErrSessionClosed
	}
	// Another connection may have started one meanwhile.
	if ref, ok := r.clients[viewerID]; ok {
		ref.refs++
		go c.Close()
		return ref.client, r.releaser(viewerID, ref), nil
	}
	ref := &clientRef{client: c, refs: 1}
	r.clients[viewerID] = ref
	return c, r.releaser(viewerID, ref), nil
}

func (r *Registry) releaser(viewerID string, ref *clientRef) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			ref.refs--
			last := ref.refs == 0 && r.clients[viewerID] == ref
			if last {
				delete(r.clients, viewerID)
			}
			r.mu.Unlock()

			if last {
				ref.client.Close()
			}
		})
	}
}

// Register makes s addressable.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.logger.Debug("session registered",
		zap.String("session_id", s.ID()),
		zap.String("kind", s.Kind()),
		zap.String("viewer_id", s.ViewerID()),
	)
}

// Unregister forgets a session without closing it.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Lookup returns viewerID's session with the given id.
func (r *Registry) Lookup(id, viewerID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.ViewerID() != viewerID {
		return nil, false
	}
	return s, true
}

// Chat returns viewerID's chat screen with the given id.
func (r *Registry) Chat(id, viewerID string) (*ChatScreen, bool) {
	s, ok := r.Lookup(id, viewerID)
	if !ok {
		return nil, false
	}
	chat, ok := s.(*ChatScreen)
	return chat, ok
}

// Jobs returns viewerID's job screen with the given id.
func (r *Registry) Jobs(id, viewerID string) (*JobsScreen, bool) {
	s, ok := r.Lookup(id, viewerID)
	if !ok {
		return nil, false
	}
	screen, ok := s.(*JobsScreen)
	return screen, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session and client.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	clients := make([]*Client, 0, len(r.clients))
	for _, ref := range r.clients {
		clients = append(clients, ref.client)
	}
	r.sessions = make(map[string]Session)
	r.clients = make(map[string]*clientRef)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, c := range clients {
		c.Close()
	}
}
