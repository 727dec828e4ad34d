package memory

import (
	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// Parts bundles the in-memory implementations so tests can reach them.
type Parts struct {
	Store    *Store
	Counters *Counters
	Feed     *Feed
	Blobs    *Blobs
}

// New creates a hosted backend built entirely from in-memory parts. Blob
// URLs start with blobBaseURL.
func New(blobBaseURL string, log *logger.Logger) (*backend.Hosted, *Parts) {
	if blobBaseURL == "" {
		blobBaseURL = "mem://blobs"
	}
	parts := &Parts{
		Store:    NewStore(),
		Counters: NewCounters(),
		Feed:     NewFeed(),
		Blobs:    NewBlobs(blobBaseURL),
	}
	return backend.NewHosted(parts.Store, parts.Counters, parts.Feed, parts.Blobs, log), parts
}
