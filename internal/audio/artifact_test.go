package audio_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/post-speech-service/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockRead = errors.New("mock read error")

// failingReader yields some bytes and then fails, like a dropped synthesis stream.
type failingReader struct {
	data []byte
	done bool
}

func (f *failingReader) Read(buffer []byte) (int, error) {
	if f.done {
		return 0, errMockRead
	}

	f.done = true

	return copy(buffer, f.data), nil
}

func TestArtifact_AppendPreservesOrder(t *testing.T) {
	t.Parallel()

	artifact, err := audio.NewArtifact(t.TempDir(), "post-1")
	require.NoError(t, err)

	defer func() { require.NoError(t, artifact.Close()) }()

	payloads := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}

	var expected []byte

	for index, payload := range payloads {
		written, appendErr := artifact.Append(bytes.NewReader(payload))
		require.NoError(t, appendErr)
		assert.Equal(t, int64(len(payload)), written)

		expected = append(expected, payload...)

		reader, readerErr := artifact.Reader()
		require.NoError(t, readerErr)

		content, readErr := io.ReadAll(reader)
		require.NoError(t, readErr)
		assert.Equal(t, expected, content, "prefix after block %d", index)
	}

	assert.Equal(t, int64(len(expected)), artifact.Size())
	assert.Equal(t, 3, artifact.Len())
	assert.Equal(t, []int64{6, 13, 18}, artifact.Boundaries())
}

func TestArtifact_CloseRemovesStagingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	artifact, err := audio.NewArtifact(dir, "post-2")
	require.NoError(t, err)

	_, err = artifact.Append(strings.NewReader("audio"))
	require.NoError(t, err)

	path := artifact.Path()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.FileExists(t, path)

	require.NoError(t, artifact.Close())
	assert.NoFileExists(t, path)

	require.NoError(t, artifact.Close(), "close is idempotent")

	_, err = artifact.Append(strings.NewReader("more"))
	require.ErrorIs(t, err, audio.ErrArtifactClosed)

	_, err = artifact.Reader()
	require.ErrorIs(t, err, audio.ErrArtifactClosed)
}

func TestArtifact_FailedAppend(t *testing.T) {
	t.Parallel()

	artifact, err := audio.NewArtifact(t.TempDir(), "post-3")
	require.NoError(t, err)

	_, err = artifact.Append(&failingReader{data: []byte("partial"), done: false})
	require.ErrorIs(t, err, errMockRead)
	require.NotErrorIs(t, err, audio.ErrStagingWrite)
	assert.Equal(t, 0, artifact.Len(), "a failed append is not a complete block")

	path := artifact.Path()
	require.NoError(t, artifact.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewArtifact_SanitizesID(t *testing.T) {
	t.Parallel()

	artifact, err := audio.NewArtifact(t.TempDir(), "../../etc/passwd")
	require.NoError(t, err)

	defer func() { require.NoError(t, artifact.Close()) }()

	assert.True(t, strings.HasPrefix(filepath.Base(artifact.Path()), "______etc_passwd-"))
	assert.Equal(t, "../../etc/passwd", artifact.ID())
}

func TestNewArtifact_EmptyID(t *testing.T) {
	t.Parallel()

	_, err := audio.NewArtifact(t.TempDir(), "")
	require.ErrorIs(t, err, audio.ErrEmptyID)
}
