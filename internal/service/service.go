// Package service wires the post-speech components together from configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/api"
	"github.com/book-expert/post-speech-service/internal/config"
	"github.com/book-expert/post-speech-service/internal/converter"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/book-expert/post-speech-service/internal/notify"
	"github.com/book-expert/post-speech-service/internal/objectstore"
	"github.com/book-expert/post-speech-service/internal/publisher"
	"github.com/book-expert/post-speech-service/internal/recordstore"
	"github.com/book-expert/post-speech-service/internal/tts"
	"github.com/book-expert/post-speech-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	shutdownTimeout    = 10 * time.Second
	healthCheckTimeout = 5 * time.Second
)

// ErrAPIKeyMissing indicates that the configured API key variable is unset.
var ErrAPIKeyMissing = errors.New("synthesis api key environment variable is not set")

// Service holds every wired component of the post-speech service.
type Service struct {
	cfg            *config.Config
	log            *logger.Logger
	natsConnection *nats.Conn

	Records     core.RecordStore
	Synthesizer core.Synthesizer
	Audio       *objectstore.NatsObjectStore
	Converter   *converter.Converter
	API         *api.Server
	Worker      *worker.NatsWorker
}

// New connects to NATS and builds every component described by cfg.
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	svc, err := build(cfg, log, natsConnection)
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	return svc, nil
}

func build(cfg *config.Config, log *logger.Logger, natsConnection *nats.Conn) (*Service, error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return nil, err
	}

	records, err := NewRecordStore(cfg, jetstreamContext)
	if err != nil {
		return nil, err
	}

	synthesizer, err := NewSynthesizer(cfg, log)
	if err != nil {
		_ = records.Close()

		return nil, err
	}

	pub, err := publisher.New(audioStore, cfg.Storage)
	if err != nil {
		_ = records.Close()

		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	conv, err := converter.New(records, synthesizer, pub, converter.OptionsFromConfig(cfg), log)
	if err != nil {
		_ = records.Close()

		return nil, fmt.Errorf("failed to create converter: %w", err)
	}

	notifier, err := notify.NewNatsNotifier(natsConnection, cfg.NATS.PostCreatedSubject)
	if err != nil {
		_ = records.Close()

		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	server, err := api.NewServer(api.Deps{
		Records:      records,
		Notifier:     notifier,
		Audio:        audioStore,
		ContentType:  cfg.Storage.ContentType,
		DefaultVoice: cfg.Synthesis.DefaultVoice,
		VoiceAllowed: cfg.VoiceAllowed,
		Log:          log,
	})
	if err != nil {
		_ = records.Close()

		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	postWorker, err := worker.NewNatsWorker(natsConnection, cfg.NATS.PostCreatedSubject, conv, log)
	if err != nil {
		_ = records.Close()

		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	return &Service{
		cfg:            cfg,
		log:            log,
		natsConnection: natsConnection,
		Records:        records,
		Synthesizer:    synthesizer,
		Audio:          audioStore,
		Converter:      conv,
		API:            server,
		Worker:         postWorker,
	}, nil
}

// NewRecordStore opens the record store selected by records.driver.
func NewRecordStore(cfg *config.Config, jetstreamContext nats.JetStreamContext) (core.RecordStore, error) {
	switch cfg.Records.Driver {
	case config.RecordDriverSQLite:
		store, err := recordstore.NewSQLite(cfg.Records.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite record store: %w", err)
		}

		return store, nil
	case config.RecordDriverNATS:
		store, err := recordstore.NewNatsKV(jetstreamContext, cfg.NATS.PostsKVBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open nats record store: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", config.ErrUnknownRecordDriver, cfg.Records.Driver)
	}
}

// NewSynthesizer builds the configured synthesizer wrapped in the retry policy.
func NewSynthesizer(cfg *config.Config, log *logger.Logger) (core.Synthesizer, error) {
	var synthesizer core.Synthesizer

	switch cfg.Synthesis.Provider {
	case config.ProviderHTTP:
		timeout := time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second
		synthesizer = tts.NewHTTPClient(cfg.Synthesis.ServiceURL, timeout)
	case config.ProviderOpenAI:
		apiKey := os.Getenv(cfg.Synthesis.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrAPIKeyMissing, cfg.Synthesis.APIKeyEnv)
		}

		openAISynthesizer, err := tts.NewOpenAISynthesizer(apiKey, cfg.Synthesis.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai synthesizer: %w", err)
		}

		synthesizer = openAISynthesizer
	default:
		return nil, fmt.Errorf("%w: '%s'", config.ErrUnknownProvider, cfg.Synthesis.Provider)
	}

	backoff := time.Duration(cfg.Synthesis.RetryBackoffMS) * time.Millisecond

	return tts.NewRetryingSynthesizer(synthesizer, log, cfg.Synthesis.MaxAttempts, backoff), nil
}

// Run serves the intake API and the conversion worker until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.checkSynthesizer(runCtx)

	workerErr := make(chan error, 1)

	go func() {
		workerErr <- s.Worker.Run(runCtx)
	}()

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- s.API.Listen(s.cfg.Server.ListenAddress)
	}()

	s.log.System("Post-speech service listening on %s, converting posts from subject %s into bucket %s",
		s.cfg.Server.ListenAddress, s.cfg.NATS.PostCreatedSubject, s.Audio.Bucket())

	var listenErr error

	select {
	case <-runCtx.Done():
	case listenErr = <-serveErr:
		if listenErr != nil {
			listenErr = fmt.Errorf("failed to serve API on %s: %w", s.cfg.Server.ListenAddress, listenErr)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErr := s.API.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.log.Warn("Failed to shut down API server: %v", shutdownErr)
	}

	return errors.Join(listenErr, <-workerErr)
}

// checkSynthesizer probes the speech backend once at startup. An unhealthy
// backend is only reported; conversions surface their own failures.
func (s *Service) checkSynthesizer(ctx context.Context) {
	checker, ok := s.Synthesizer.(interface{ HealthCheck(ctx context.Context) error })
	if !ok {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := checker.HealthCheck(checkCtx)
	if err != nil {
		s.log.Warn("Speech synthesizer is not healthy: %v", err)

		return
	}

	s.log.Info("Speech synthesizer is healthy")
}

// Close releases the record store and the NATS connection.
func (s *Service) Close() error {
	closeErr := s.Records.Close()

	drainErr := s.natsConnection.Drain()
	if drainErr != nil {
		s.natsConnection.Close()
	}

	return errors.Join(closeErr, drainErr)
}
