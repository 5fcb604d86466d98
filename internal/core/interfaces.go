// Package core defines the domain types and the collaborator interfaces of the post-speech service.
package core

import (
	"context"
	"io"
)

// OutputFormat names the audio encoding requested from a synthesizer.
type OutputFormat string

// Supported output formats.
const (
	FormatMP3 OutputFormat = "mp3"
	FormatWAV OutputFormat = "wav"
	FormatOGG OutputFormat = "ogg"
)

// AccessPolicy describes who may read an uploaded object.
type AccessPolicy string

// Access policies understood by the blob stores.
const (
	AccessPrivate    AccessPolicy = "private"
	AccessPublicRead AccessPolicy = "public-read"
)

// SynthesisRequest is one call to a speech synthesizer.
// Text must stay under the synthesizer's own per-call limit.
type SynthesisRequest struct {
	Text   string
	Voice  string
	Format OutputFormat
}

// Synthesizer converts a block of text into an audio stream.
// The caller owns the returned stream and must close it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (io.ReadCloser, error)
}

// Object is a single named blob handed to a BlobStore.
type Object struct {
	Key         string
	Body        io.Reader
	ContentType string
	Access      AccessPolicy
}

// BlobStore defines the interface for interacting with a key-value blob store.
// A store is bound to one bucket when it is constructed.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, obj Object) error
}

// RecordStore persists posts keyed by their id.
type RecordStore interface {
	Get(ctx context.Context, id string) (*Post, error)
	Put(ctx context.Context, post *Post) error
	List(ctx context.Context) ([]*Post, error)
	Close() error
}

// Notifier announces newly created posts to the conversion trigger.
type Notifier interface {
	PostCreated(ctx context.Context, id string) error
}
