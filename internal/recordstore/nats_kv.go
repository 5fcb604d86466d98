// Package recordstore provides the post record stores: a NATS JetStream
// key-value bucket and an embedded SQLite database.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/nats-io/nats.go"
)

var (
	// ErrPostNil indicates that a nil post was passed to Put.
	ErrPostNil = errors.New("post cannot be nil")
	// ErrPostIDEmpty indicates that a post without an id was passed to Put.
	ErrPostIDEmpty = errors.New("post id cannot be empty")
)

// NatsKVStore implements core.RecordStore on a JetStream key-value bucket.
// Posts are stored as JSON under their id.
type NatsKVStore struct {
	bucket string
	kv     nats.KeyValue
}

// NewNatsKV binds to bucketName, creating the bucket when it does not exist.
func NewNatsKV(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsKVStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:       bucketName,
			Description:  fmt.Sprintf("Post records for the %s bucket.", bucketName),
			MaxValueSize: 0,
			History:      1,
			TTL:          0,
			MaxBytes:     0,
			Storage:      nats.FileStorage,
			Replicas:     1,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket '%s': %w", bucketName, err)
	}

	return &NatsKVStore{bucket: bucketName, kv: kv}, nil
}

// Get loads the post stored under id.
func (s *NatsKVStore) Get(_ context.Context, id string) (*core.Post, error) {
	entry, err := s.kv.Get(id)
	if err != nil {
		// No post can be stored under a key the bucket rejects.
		if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: '%s'", core.ErrPostNotFound, id)
		}

		return nil, fmt.Errorf("failed to get post '%s' from bucket '%s': %w", id, s.bucket, err)
	}

	var post core.Post

	err = json.Unmarshal(entry.Value(), &post)
	if err != nil {
		return nil, fmt.Errorf("failed to decode post '%s': %w", id, err)
	}

	return &post, nil
}

// Put stores post under its id, replacing any previous version.
func (s *NatsKVStore) Put(_ context.Context, post *core.Post) error {
	validationErr := validatePost(post)
	if validationErr != nil {
		return validationErr
	}

	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to encode post '%s': %w", post.ID, err)
	}

	_, err = s.kv.Put(post.ID, data)
	if err != nil {
		return fmt.Errorf("failed to put post '%s' to bucket '%s': %w", post.ID, s.bucket, err)
	}

	return nil
}

// List returns every stored post ordered by creation time.
func (s *NatsKVStore) List(ctx context.Context) ([]*core.Post, error) {
	keys, err := s.kv.Keys(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return []*core.Post{}, nil
		}

		return nil, fmt.Errorf("failed to list keys of bucket '%s': %w", s.bucket, err)
	}

	posts := make([]*core.Post, 0, len(keys))

	for _, key := range keys {
		post, getErr := s.Get(ctx, key)
		if errors.Is(getErr, core.ErrPostNotFound) {
			continue
		}

		if getErr != nil {
			return nil, getErr
		}

		posts = append(posts, post)
	}

	sortPosts(posts)

	return posts, nil
}

// Close is a no-op; the NATS connection is owned by the caller.
func (s *NatsKVStore) Close() error {
	return nil
}

func validatePost(post *core.Post) error {
	if post == nil {
		return ErrPostNil
	}

	if post.ID == "" {
		return ErrPostIDEmpty
	}

	return nil
}

func sortPosts(posts []*core.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}

		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
}
