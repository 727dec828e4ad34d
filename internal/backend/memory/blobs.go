package memory

import (
	"context"
	"sync"

	"github.com/workhub-social/chatsync/internal/backend"
)

type object struct {
	data        []byte
	contentType string
}

// Blobs is an in-memory backend.Blobs.
type Blobs struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

// NewBlobs creates a blob store whose URLs start with baseURL.
func NewBlobs(baseURL string) *Blobs {
	return &Blobs{baseURL: baseURL, objects: make(map[string]object)}
}

// Upload stores data under path.
func (b *Blobs) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[path] = object{data: append([]byte(nil), data...), contentType: contentType}
	return b.baseURL + "/" + path, nil
}

// Get returns the bytes and content type stored under path.
func (b *Blobs) Get(ctx context.Context, path string) ([]byte, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[path]
	if !ok {
		return nil, "", backend.ErrNotFound
	}
	return obj.data, obj.contentType, nil
}
