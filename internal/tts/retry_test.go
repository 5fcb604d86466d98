package tts_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/book-expert/post-speech-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockSynthesis = errors.New("mock synthesis error")

type flakySynthesizer struct {
	failures int
	calls    int
	err      error
}

func (f *flakySynthesizer) Synthesize(_ context.Context, _ core.SynthesisRequest) (io.ReadCloser, error) {
	f.calls++

	if f.calls <= f.failures {
		return nil, f.err
	}

	return io.NopCloser(strings.NewReader("audio")), nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "tts-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func TestRetryingSynthesizer_SingleAttemptSurfacesFailure(t *testing.T) {
	t.Parallel()

	next := &flakySynthesizer{failures: 1, calls: 0, err: errMockSynthesis}
	synth := tts.NewRetryingSynthesizer(next, newTestLogger(t), 1, time.Millisecond)

	_, err := synth.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, errMockSynthesis)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingSynthesizer_RecoversWithinAttempts(t *testing.T) {
	t.Parallel()

	next := &flakySynthesizer{failures: 2, calls: 0, err: errMockSynthesis}
	synth := tts.NewRetryingSynthesizer(next, newTestLogger(t), 3, time.Millisecond)

	stream, err := synth.Synthesize(context.Background(), standardRequest())
	require.NoError(t, err)

	defer stream.Close()

	assert.Equal(t, 3, next.calls)
}

func TestRetryingSynthesizer_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	next := &flakySynthesizer{failures: 10, calls: 0, err: errMockSynthesis}
	synth := tts.NewRetryingSynthesizer(next, newTestLogger(t), 3, time.Millisecond)

	_, err := synth.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, errMockSynthesis)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, next.calls)
}

func TestRetryingSynthesizer_EmptyTextNotRetried(t *testing.T) {
	t.Parallel()

	next := &flakySynthesizer{failures: 10, calls: 0, err: tts.ErrTextEmpty}
	synth := tts.NewRetryingSynthesizer(next, newTestLogger(t), 5, time.Millisecond)

	_, err := synth.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, tts.ErrTextEmpty)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingSynthesizer_StopsOnCancel(t *testing.T) {
	t.Parallel()

	next := &flakySynthesizer{failures: 10, calls: 0, err: errMockSynthesis}
	synth := tts.NewRetryingSynthesizer(next, newTestLogger(t), 5, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := synth.Synthesize(ctx, standardRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingSynthesizer_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	unhealthy := tts.NewRetryingSynthesizer(tts.NewHTTPClient(server.URL, time.Second), newTestLogger(t), 1, 0)
	require.Error(t, unhealthy.HealthCheck(context.Background()))

	opaque := tts.NewRetryingSynthesizer(&flakySynthesizer{failures: 0, calls: 0, err: nil}, newTestLogger(t), 1, 0)
	require.NoError(t, opaque.HealthCheck(context.Background()))
}
