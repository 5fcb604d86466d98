package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/core"
)

const maxBackoff = 30 * time.Second

// RetryingSynthesizer retries failed synthesis calls with exponential backoff.
// With maxAttempts of 1 the first failure is returned unchanged.
type RetryingSynthesizer struct {
	next        core.Synthesizer
	log         *logger.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewRetryingSynthesizer wraps next. maxAttempts below 1 is treated as 1.
func NewRetryingSynthesizer(
	next core.Synthesizer,
	log *logger.Logger,
	maxAttempts int,
	backoff time.Duration,
) *RetryingSynthesizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &RetryingSynthesizer{
		next:        next,
		log:         log,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Synthesize calls the wrapped synthesizer until it succeeds, the attempts
// run out, or ctx is done. Empty text is never retried.
func (r *RetryingSynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) (io.ReadCloser, error) {
	var (
		lastErr  error
		attempts int
	)

	delay := r.backoff

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		attempts = attempt

		stream, err := r.next.Synthesize(ctx, req)
		if err == nil {
			return stream, nil
		}

		lastErr = err

		if errors.Is(err, ErrTextEmpty) || attempt == r.maxAttempts {
			break
		}

		r.log.Warn("Synthesis attempt %d/%d failed, retrying in %s: %v", attempt, r.maxAttempts, delay, err)

		waitErr := sleep(ctx, delay)
		if waitErr != nil {
			return nil, fmt.Errorf("synthesis retry aborted after attempt %d: %w", attempt, waitErr)
		}

		delay = min(delay*2, maxBackoff)
	}

	if attempts == 1 {
		return nil, lastErr
	}

	return nil, fmt.Errorf("synthesis failed after %d attempts: %w", attempts, lastErr)
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck forwards to the wrapped synthesizer when it can report its health.
func (r *RetryingSynthesizer) HealthCheck(ctx context.Context) error {
	checker, ok := r.next.(healthChecker)
	if !ok {
		return nil
	}

	return checker.HealthCheck(ctx)
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
