package converter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/book-expert/post-speech-service/internal/audio"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestBlockErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "staging write",
			err:  fmt.Errorf("%w: block 1 of artifact 'p': disk full", audio.ErrStagingWrite),
			want: core.ErrStorage,
		},
		{
			name: "artifact closed",
			err:  audio.ErrArtifactClosed,
			want: core.ErrStorage,
		},
		{
			name: "synthesizer failure",
			err:  errors.New("speech service unavailable"),
			want: core.ErrSynthesis,
		},
		{
			name: "stream read failure",
			err:  fmt.Errorf("failed to append block 1 to artifact 'p': %w", errors.New("connection reset")),
			want: core.ErrSynthesis,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, blockErrorKind(testCase.err))
		})
	}
}
