package audiostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// NATSBlobs keeps audio bytes in a JetStream object store bucket.
type NATSBlobs struct {
	bucket string
	store  jetstream.ObjectStore
}

// NewNATSBlobs creates the bucket, or binds to it when it already exists.
func NewNATSBlobs(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSBlobs, error) {
	store, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Pre-generated audio for the %s bucket.", bucket),
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}
	return &NATSBlobs{bucket: bucket, store: store}, nil
}

func (n *NATSBlobs) Backend() string { return "nats" }

func (n *NATSBlobs) Put(ctx context.Context, key string, data []byte) error {
	if _, err := n.store.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}

func (n *NATSBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := n.store.GetBytes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	return data, nil
}

func (n *NATSBlobs) Delete(ctx context.Context, key string) error {
	if err := n.store.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}
