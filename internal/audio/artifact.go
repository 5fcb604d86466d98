// Package audio stages the synthesized audio of one post until it is published.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	stagingPattern         = "%s-*.audio"
	invalidCharReplacement = '_'
	maxStagingPrefix       = 64
)

var (
	// ErrArtifactClosed is returned when an artifact is used after Close.
	ErrArtifactClosed = errors.New("artifact is closed")
	// ErrStagingWrite indicates that the staging file could not be written.
	// Any other Append failure comes from reading the payload.
	ErrStagingWrite = errors.New("failed to write staging file")
	// ErrEmptyID indicates that an artifact was requested without a post id.
	ErrEmptyID = errors.New("artifact id cannot be empty")
)

// Artifact accumulates per-block audio payloads, in append order, in a
// temporary staging file scoped to one post id. Close releases the file and
// must be deferred by the owner on every exit path.
type Artifact struct {
	mu         sync.Mutex
	id         string
	file       *os.File
	size       int64
	boundaries []int64
	closed     bool
}

// NewArtifact creates an empty artifact for id, staged in dir.
// An empty dir selects the OS temporary directory.
func NewArtifact(dir, id string) (*Artifact, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	file, err := os.CreateTemp(dir, fmt.Sprintf(stagingPattern, stagingPrefix(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file for '%s': %w", id, err)
	}

	return &Artifact{
		mu:         sync.Mutex{},
		id:         id,
		file:       file,
		size:       0,
		boundaries: nil,
		closed:     false,
	}, nil
}

// ID returns the post id the artifact belongs to.
func (a *Artifact) ID() string {
	return a.id
}

// Path returns the staging file location.
func (a *Artifact) Path() string {
	return a.file.Name()
}

// Append copies payload to the end of the artifact and returns the number of
// bytes written. A failed append leaves the artifact unusable for publishing,
// so callers abort and Close it.
func (a *Artifact) Append(payload io.Reader) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrArtifactClosed
	}

	writer := &stagingWriter{file: a.file, err: nil}

	written, err := io.Copy(writer, payload)
	a.size += written

	if writer.err != nil {
		return written, fmt.Errorf("%w: block %d of artifact '%s': %w", ErrStagingWrite, len(a.boundaries)+1, a.id, writer.err)
	}

	if err != nil {
		return written, fmt.Errorf("failed to append block %d to artifact '%s': %w", len(a.boundaries)+1, a.id, err)
	}

	a.boundaries = append(a.boundaries, a.size)

	return written, nil
}

// stagingWriter remembers the write error so Append can tell it apart from
// a failure of the payload reader.
type stagingWriter struct {
	file *os.File
	err  error
}

func (w *stagingWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil {
		w.err = err
	}

	return n, err
}

// Size returns the number of bytes accumulated so far.
func (a *Artifact) Size() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.size
}

// Len returns the number of appended blocks.
func (a *Artifact) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.boundaries)
}

// Boundaries returns the cumulative end offset of every appended block.
func (a *Artifact) Boundaries() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]int64(nil), a.boundaries...)
}

// Reader returns a reader over the complete artifact content.
func (a *Artifact) Reader() (io.Reader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrArtifactClosed
	}

	return io.NewSectionReader(a.file, 0, a.size), nil
}

// Close releases the staging file. It is safe to call more than once.
func (a *Artifact) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	closeErr := a.file.Close()
	removeErr := os.Remove(a.file.Name())

	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staging file '%s': %w", a.file.Name(), removeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close staging file '%s': %w", a.file.Name(), closeErr)
	}

	return nil
}

// stagingPrefix maps id to a file-name-safe prefix.
func stagingPrefix(id string) string {
	prefix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return invalidCharReplacement
		}
	}, id)

	if len(prefix) > maxStagingPrefix {
		prefix = prefix[:maxStagingPrefix]
	}

	return prefix
}
