// Package objectstore provides a NATS-based implementation of the BlobStore interface.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerContentType = "Content-Type"
	metaAccessPolicy  = "access-policy"
)

// ErrKeyEmpty indicates that an object was uploaded without a key.
var ErrKeyEmpty = errors.New("object key cannot be empty")

// NatsObjectStore implements the core.BlobStore interface using NATS JetStream.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
}

// New creates and initializes a new NatsObjectStore.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	// Use a "create-first" approach.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Published post audio for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			store, err = jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
			}
		} else {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		store:            store,
	}, nil
}

// Bucket returns the name of the bound bucket.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Info returns the stored content type and access policy of an object.
func (n *NatsObjectStore) Info(ctx context.Context, key string) (string, core.AccessPolicy, error) {
	info, err := n.store.GetInfo(key, nats.Context(ctx))
	if err != nil {
		return "", "", fmt.Errorf("failed to get info for object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	return info.Headers.Get(headerContentType), core.AccessPolicy(info.Metadata[metaAccessPolicy]), nil
}

// Upload streams an object into the NATS object store, recording its content
// type as a header and its access policy as metadata.
func (n *NatsObjectStore) Upload(ctx context.Context, obj core.Object) error {
	if obj.Key == "" {
		return ErrKeyEmpty
	}

	headers := nats.Header{}
	if obj.ContentType != "" {
		headers.Set(headerContentType, obj.ContentType)
	}

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        obj.Key,
		Description: "",
		Headers:     headers,
		Metadata:    map[string]string{metaAccessPolicy: string(obj.Access)},
		Opts:        nil,
	}, obj.Body, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", obj.Key, n.bucket, err)
	}

	return nil
}
