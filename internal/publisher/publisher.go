// Package publisher uploads finished audio artifacts and derives their public URL.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/book-expert/post-speech-service/internal/config"
	"github.com/book-expert/post-speech-service/internal/core"
)

var (
	// ErrStoreNil indicates that no blob store was supplied.
	ErrStoreNil = errors.New("blob store cannot be nil")
	// ErrInvalidBaseURL indicates an unusable public base URL.
	ErrInvalidBaseURL = errors.New("invalid public base url")
)

// ArtifactSource is the read side of an accumulated artifact.
type ArtifactSource interface {
	Reader() (io.Reader, error)
	Size() int64
}

// Publisher uploads artifacts as single public objects.
type Publisher struct {
	store       core.BlobStore
	baseURL     string
	contentType string
	extension   string
}

// New creates a Publisher for the configured storage location.
func New(store core.BlobStore, cfg config.StorageConfig) (*Publisher, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	parsed, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidBaseURL, cfg.PublicBaseURL)
	}

	return &Publisher{
		store:       store,
		baseURL:     cfg.PublicBaseURL,
		contentType: cfg.ContentType,
		extension:   cfg.ObjectExtension,
	}, nil
}

// Key returns the object key used for the artifact of post id.
func (p *Publisher) Key(id string) string {
	return id + p.extension
}

// URL returns the public address of the object stored under key.
func (p *Publisher) URL(key string) (string, error) {
	joined, err := url.JoinPath(p.baseURL, key)
	if err != nil {
		return "", fmt.Errorf("failed to join public url for '%s': %w", key, err)
	}

	return joined, nil
}

// Publish uploads the whole artifact under the key derived from id and returns
// its public URL. The upload's success is trusted; no existence check follows.
func (p *Publisher) Publish(ctx context.Context, artifact ArtifactSource, id string) (string, error) {
	key := p.Key(id)

	publicURL, err := p.URL(key)
	if err != nil {
		return "", err
	}

	body, err := artifact.Reader()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read artifact for '%s': %w", core.ErrStorage, id, err)
	}

	uploadErr := p.store.Upload(ctx, core.Object{
		Key:         key,
		Body:        body,
		ContentType: p.contentType,
		Access:      core.AccessPublicRead,
	})
	if uploadErr != nil {
		return "", fmt.Errorf("%w: failed to upload '%s' (%d bytes): %w", core.ErrStorage, key, artifact.Size(), uploadErr)
	}

	return publicURL, nil
}
