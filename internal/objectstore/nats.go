// Package objectstore implements the remote tier's audio storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

// NATS keeps audio in a JetStream object store bucket.
type NATS struct {
	store  jetstream.ObjectStore
	bucket string
	log    *slog.Logger
}

// OpenNATS binds to bucket, creating it if it does not exist yet.
func OpenNATS(ctx context.Context, js jetstream.JetStream, bucket string, log *slog.Logger) (*NATS, error) {
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "synthesized speech audio",
	})
	if err != nil {
		return nil, fmt.Errorf("open object store %q: %w", bucket, err)
	}
	log.Info("speech object store ready", slog.String("driver", "nats"), slog.String("bucket", bucket))
	return &NATS{store: store, bucket: bucket, log: log}, nil
}

// Put implements speech.ObjectStore.
func (n *NATS) Put(ctx context.Context, name string, data []byte) error {
	if _, err := n.store.PutBytes(ctx, name, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", n.bucket, name, err)
	}
	return nil
}

// Get implements speech.ObjectStore.
func (n *NATS) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := n.store.GetBytes(ctx, name)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("get %s/%s: %w", n.bucket, name, speech.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", n.bucket, name, err)
	}
	return data, nil
}

// Delete implements speech.ObjectStore. Deleting a missing object is not an
// error.
func (n *NATS) Delete(ctx context.Context, name string) error {
	err := n.store.Delete(ctx, name)
	if err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("delete %s/%s: %w", n.bucket, name, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the bus client.
func (n *NATS) Close() error { return nil }
