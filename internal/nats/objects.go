package nats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/workhub-social/chatsync/internal/backend"
)

// DefaultBucket is the object store bucket for attachments and post files.
const DefaultBucket = "chatsync-files"

// ObjectBlobs stores blobs in a JetStream object store. URLs point at the
// API's file route.
type ObjectBlobs struct {
	store   jetstream.ObjectStore
	baseURL string
}

var (
	_ backend.Blobs      = (*ObjectBlobs)(nil)
	_ backend.BlobReader = (*ObjectBlobs)(nil)
)

// NewObjectBlobs opens bucket, creating it if needed.
func NewObjectBlobs(ctx context.Context, client *Client, bucket, baseURL string) (*ObjectBlobs, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	js := client.JetStream()

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Message attachments and post files",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store %q: %w", bucket, err)
	}

	return &ObjectBlobs{store: store, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload stores data under path and returns its URL.
func (b *ObjectBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	meta := jetstream.ObjectMeta{
		Name:    path,
		Headers: nats.Header{},
	}
	meta.Headers.Set("Content-Type", contentType)

	if _, err := b.store.Put(ctx, meta, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store object %q: %w", path, err)
	}
	return b.baseURL + "/" + path, nil
}

// Get returns the object stored under path and its content type.
func (b *ObjectBlobs) Get(ctx context.Context, path string) ([]byte, string, error) {
	info, err := b.store.GetInfo(ctx, path)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, "", backend.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat object %q: %w", path, err)
	}

	data, err := b.store.GetBytes(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %q: %w", path, err)
	}

	contentType := "application/octet-stream"
	if info.Headers != nil && info.Headers.Get("Content-Type") != "" {
		contentType = info.Headers.Get("Content-Type")
	}
	return data, contentType, nil
}
