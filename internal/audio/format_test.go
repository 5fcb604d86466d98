package audio_test

import (
	"testing"
	"time"

	"github.com/book-expert/post-speech-service/internal/audio"
	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", audio.FormatSize(512))
	assert.Equal(t, "1.5 KB", audio.FormatSize(1536))
	assert.Equal(t, "2.0 MB", audio.FormatSize(2*1024*1024))
	assert.Equal(t, "1.0 GB", audio.FormatSize(1024*1024*1024))
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45.2s", audio.FormatElapsed(45200*time.Millisecond))
	assert.Equal(t, "5m 30.5s", audio.FormatElapsed(5*time.Minute+30500*time.Millisecond))
	assert.Equal(t, "1h 15m", audio.FormatElapsed(time.Hour+15*time.Minute))
}
