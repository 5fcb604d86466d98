// Package converter turns a stored post into a published audio artifact.
//
// A conversion loads the post, splits its text into synthesis-sized blocks,
// synthesizes the blocks one at a time into a staged artifact, publishes the
// artifact and finally records the public URL on the post.
package converter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/audio"
	"github.com/book-expert/post-speech-service/internal/config"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/book-expert/post-speech-service/internal/publisher"
	"github.com/book-expert/post-speech-service/internal/tts/text"
)

// Log messages.
const (
	logConverted       = "Converted post %s: %d block(s), %s of audio in %s, published at %s"
	logAlreadyDone     = "Post %s already converted: %s"
	logFailed          = "Conversion of post %s failed (%s): %v"
	logFinalWriteRetry = "Final write for post %s failed (attempt %d/%d): %v"
	logUnreferencedURL = "Post %s stays %s; its audio is published at %s"
	logMarkFailed      = "Failed to mark post %s as %s: %v"
	logArtifactClose   = "Failed to release staged audio for post %s: %v"
)

var (
	// ErrRecordsNil indicates that no record store was supplied.
	ErrRecordsNil = errors.New("record store cannot be nil")
	// ErrSynthesizerNil indicates that no synthesizer was supplied.
	ErrSynthesizerNil = errors.New("synthesizer cannot be nil")
	// ErrPublisherNil indicates that no publisher was supplied.
	ErrPublisherNil = errors.New("publisher cannot be nil")
	// ErrLoggerNil indicates that no logger was supplied.
	ErrLoggerNil = errors.New("logger cannot be nil")
)

// Publisher uploads a finished artifact and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, artifact publisher.ArtifactSource, id string) (string, error)
}

// Options tunes a Converter.
type Options struct {
	BlockLimit         int
	Lookahead          int
	Format             core.OutputFormat
	DefaultVoice       string
	AllowedVoices      []string
	StagingDir         string
	Timeout            time.Duration
	FinalWriteAttempts int
	MarkFailed         bool
}

// OptionsFromConfig derives converter options from the service configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BlockLimit:         cfg.Synthesis.BlockLimit,
		Lookahead:          cfg.Synthesis.Lookahead,
		Format:             core.OutputFormat(cfg.Synthesis.OutputFormat),
		DefaultVoice:       cfg.Synthesis.DefaultVoice,
		AllowedVoices:      cfg.Synthesis.AllowedVoices,
		StagingDir:         cfg.Storage.StagingDir,
		Timeout:            time.Duration(cfg.Conversion.TimeoutSeconds) * time.Second,
		FinalWriteAttempts: cfg.Conversion.FinalWriteAttempts,
		MarkFailed:         cfg.Conversion.MarkFailed,
	}
}

// Converter runs conversions. Different ids may convert concurrently;
// a second conversion of an id already in flight is rejected.
type Converter struct {
	records     core.RecordStore
	synthesizer core.Synthesizer
	publisher   Publisher
	opts        Options
	log         *logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Converter.
func New(
	records core.RecordStore,
	synthesizer core.Synthesizer,
	pub Publisher,
	opts Options,
	log *logger.Logger,
) (*Converter, error) {
	switch {
	case records == nil:
		return nil, ErrRecordsNil
	case synthesizer == nil:
		return nil, ErrSynthesizerNil
	case pub == nil:
		return nil, ErrPublisherNil
	case log == nil:
		return nil, ErrLoggerNil
	}

	if opts.BlockLimit <= 0 {
		opts.BlockLimit = text.DefaultLimit
	}

	if opts.Lookahead <= 0 {
		opts.Lookahead = text.DefaultWindow(opts.BlockLimit)
	}

	if opts.Format == "" {
		opts.Format = core.FormatMP3
	}

	if opts.FinalWriteAttempts < 1 {
		opts.FinalWriteAttempts = 1
	}

	return &Converter{
		records:     records,
		synthesizer: synthesizer,
		publisher:   pub,
		opts:        opts,
		log:         log,
		mu:          sync.Mutex{},
		inFlight:    make(map[string]struct{}),
	}, nil
}

// Handle converts the post and reports the outcome to the operational log only.
func (c *Converter) Handle(ctx context.Context, id string) {
	publicURL, err := c.Convert(ctx, id)
	if err != nil {
		c.log.Error(logFailed, id, core.Kind(err), err)

		return
	}

	c.log.Info("Post %s is available at %s", id, publicURL)
}

// Convert runs one conversion of post id and returns the public URL of its audio.
// A post that is already converted is not republished.
func (c *Converter) Convert(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: post id cannot be empty", core.ErrInput)
	}

	if !c.acquire(id) {
		return "", fmt.Errorf("%w: '%s'", core.ErrConversionInProgress, id)
	}
	defer c.release(id)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	post, err := c.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrPostNotFound) {
			return "", fmt.Errorf("%w: %w", core.ErrInput, err)
		}

		return "", fmt.Errorf("%w: failed to load post '%s': %w", core.ErrRecordStore, id, err)
	}

	if post.Converted() {
		c.log.Info(logAlreadyDone, id, post.URL)

		return post.URL, nil
	}

	voice, blocks, err := c.prepare(post)
	if err != nil {
		return "", err
	}

	started := time.Now()

	publicURL, size, err := c.render(ctx, id, voice, blocks)
	if err != nil {
		c.markFailed(ctx, post)

		return "", err
	}

	c.log.Info(logConverted, id, len(blocks), audio.FormatSize(size), audio.FormatElapsed(time.Since(started)), publicURL)

	return c.complete(ctx, post, publicURL)
}

// prepare validates the post and splits its text into blocks.
func (c *Converter) prepare(post *core.Post) (string, []string, error) {
	if strings.TrimSpace(post.Text) == "" {
		return "", nil, fmt.Errorf("%w: post '%s' has no text", core.ErrInput, post.ID)
	}

	voice := post.Voice
	if voice == "" {
		voice = c.opts.DefaultVoice
	}

	if len(c.opts.AllowedVoices) > 0 && !slices.Contains(c.opts.AllowedVoices, voice) {
		return "", nil, fmt.Errorf("%w: voice '%s' is not allowed", core.ErrInput, voice)
	}

	blocks, err := text.SplitWithWindow(post.Text, c.opts.BlockLimit, c.opts.Lookahead)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to split text of post '%s': %w", core.ErrInput, post.ID, err)
	}

	if len(blocks) == 0 {
		return "", nil, fmt.Errorf("%w: post '%s' has no speakable text", core.ErrInput, post.ID)
	}

	return voice, blocks, nil
}

// render synthesizes every block in order into a staged artifact and publishes it.
// The staged artifact is released on every path.
func (c *Converter) render(ctx context.Context, id, voice string, blocks []string) (string, int64, error) {
	artifact, err := audio.NewArtifact(c.opts.StagingDir, id)
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to stage audio for post '%s': %w", core.ErrStorage, id, err)
	}

	defer func() {
		closeErr := artifact.Close()
		if closeErr != nil {
			c.log.Warn(logArtifactClose, id, closeErr)
		}
	}()

	for index, block := range blocks {
		blockErr := c.synthesizeBlock(ctx, artifact, voice, block)
		if blockErr != nil {
			return "", 0, fmt.Errorf("%w: block %d/%d of post '%s': %w",
				blockErrorKind(blockErr), index+1, len(blocks), id, blockErr)
		}
	}

	publicURL, err := c.publisher.Publish(ctx, artifact, id)
	if err != nil {
		return "", 0, err
	}

	return publicURL, artifact.Size(), nil
}

func (c *Converter) synthesizeBlock(ctx context.Context, artifact *audio.Artifact, voice, block string) error {
	stream, err := c.synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:   block,
		Voice:  voice,
		Format: c.opts.Format,
	})
	if err != nil {
		return err
	}

	_, appendErr := artifact.Append(stream)
	closeErr := stream.Close()

	if appendErr != nil {
		return appendErr
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close audio stream: %w", closeErr)
	}

	return nil
}

// blockErrorKind blames local staging for write failures and the synthesizer
// for everything else, including a stream that breaks while it is read.
func blockErrorKind(err error) error {
	if errors.Is(err, audio.ErrStagingWrite) || errors.Is(err, audio.ErrArtifactClosed) {
		return core.ErrStorage
	}

	return core.ErrSynthesis
}

// complete records the URL on the post, retrying the write as configured.
func (c *Converter) complete(ctx context.Context, post *core.Post, publicURL string) (string, error) {
	updated := *post
	updated.URL = publicURL
	updated.Status = core.StatusUpdated
	updated.UpdatedAt = time.Now().UTC()

	var putErr error

	for attempt := 1; attempt <= c.opts.FinalWriteAttempts; attempt++ {
		putErr = c.records.Put(ctx, &updated)
		if putErr == nil {
			return publicURL, nil
		}

		c.log.Warn(logFinalWriteRetry, post.ID, attempt, c.opts.FinalWriteAttempts, putErr)

		if ctx.Err() != nil {
			break
		}
	}

	c.log.Error(logUnreferencedURL, post.ID, post.Status, publicURL)

	return "", fmt.Errorf("%w: failed to record url of post '%s': %w", core.ErrRecordStore, post.ID, putErr)
}

// markFailed writes FAILED when enabled; otherwise the post is left untouched.
func (c *Converter) markFailed(ctx context.Context, post *core.Post) {
	if !c.opts.MarkFailed {
		return
	}

	failed := *post
	failed.Status = core.StatusFailed
	failed.UpdatedAt = time.Now().UTC()

	err := c.records.Put(context.WithoutCancel(ctx), &failed)
	if err != nil {
		c.log.Error(logMarkFailed, post.ID, core.StatusFailed, err)
	}
}

func (c *Converter) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[id]; busy {
		return false
	}

	c.inFlight[id] = struct{}{}

	return true
}

func (c *Converter) release(id string) {
	c.mu.Lock()
	delete(c.inFlight, id)
	c.mu.Unlock()
}
