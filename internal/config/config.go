// Package config provides the configuration structure for the post-speech service.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Record store drivers.
const (
	RecordDriverNATS   = "nats"
	RecordDriverSQLite = "sqlite"
)

// Synthesis providers.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Default values.
const (
	defaultPostCreatedSubject = "posts.created"
	defaultAudioBucket        = "POST_AUDIO"
	defaultPostsBucket        = "POSTS"
	defaultListenAddress      = ":8080"
	defaultPublicBaseURL      = "http://localhost:8080/audio"
	defaultSQLitePath         = "./data/posts.db"
	defaultModel              = "tts-1"
	defaultAPIKeyEnv          = "OPENAI_API_KEY"
	defaultOutputFormat       = "mp3"
	defaultVoice              = "alloy"
	defaultBlockLimit         = 1100
	defaultLookaheadMargin    = 100
	defaultSynthesisTimeout   = 60
	defaultMaxAttempts        = 1
	defaultRetryBackoffMillis = 500
	defaultConversionTimeout  = 300
	defaultFinalWriteAttempts = 1
)

var (
	// ErrNATSURLEmpty indicates that the NATS url is missing.
	ErrNATSURLEmpty = errors.New("nats url cannot be empty")
	// ErrPublicBaseURLEmpty indicates that the public base URL for artifacts is missing.
	ErrPublicBaseURLEmpty = errors.New("storage public_base_url cannot be empty")
	// ErrUnknownRecordDriver indicates an unsupported records.driver value.
	ErrUnknownRecordDriver = errors.New("unknown record store driver")
	// ErrUnknownProvider indicates an unsupported synthesis.provider value.
	ErrUnknownProvider = errors.New("unknown synthesis provider")
	// ErrServiceURLEmpty indicates that the http provider has no service url.
	ErrServiceURLEmpty = errors.New("synthesis service_url cannot be empty for the http provider")
	// ErrLookaheadRange indicates a lookahead window outside (0, block_limit].
	ErrLookaheadRange = errors.New("synthesis lookahead must be positive and not exceed block_limit")
	// ErrUnknownOutputFormat indicates an unsupported synthesis.output_format value.
	ErrUnknownOutputFormat = errors.New("unknown synthesis output format")
	// ErrStorageFormatMismatch indicates storage settings that disagree with the output format.
	ErrStorageFormatMismatch = errors.New("storage content_type and object_extension must match the output format")
	// ErrDefaultVoiceNotAllowed indicates a default voice missing from allowed_voices.
	ErrDefaultVoiceNotAllowed = errors.New("synthesis default_voice is not in allowed_voices")
)

type storageFormat struct {
	contentType string
	extension   string
}

// Output formats and how their artifacts are stored.
var storageFormats = map[string]storageFormat{
	"mp3": {contentType: "audio/mpeg", extension: ".mp3"},
	"wav": {contentType: "audio/wav", extension: ".wav"},
	"ogg": {contentType: "audio/ogg", extension: ".ogg"},
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	PostCreatedSubject     string `toml:"post_created_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	PostsKVBucket          string `toml:"posts_kv_bucket"`
}

// ServerConfig holds the configuration for the intake HTTP API.
type ServerConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// StorageConfig describes where converted audio is published.
type StorageConfig struct {
	PublicBaseURL   string `toml:"public_base_url"`
	StagingDir      string `toml:"staging_dir"`
	ContentType     string `toml:"content_type"`
	ObjectExtension string `toml:"object_extension"`
}

// RecordsConfig selects the record store implementation.
type RecordsConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// SynthesisConfig holds the speech synthesizer settings.
type SynthesisConfig struct {
	Provider       string   `toml:"provider"`
	ServiceURL     string   `toml:"service_url"`
	Model          string   `toml:"model"`
	APIKeyEnv      string   `toml:"api_key_env"`
	OutputFormat   string   `toml:"output_format"`
	DefaultVoice   string   `toml:"default_voice"`
	AllowedVoices  []string `toml:"allowed_voices"`
	BlockLimit     int      `toml:"block_limit"`
	Lookahead      int      `toml:"lookahead"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxAttempts    int      `toml:"max_attempts"`
	RetryBackoffMS int      `toml:"retry_backoff_ms"`
}

// ConversionConfig tunes the conversion orchestrator.
type ConversionConfig struct {
	TimeoutSeconds     int  `toml:"timeout_seconds"`
	FinalWriteAttempts int  `toml:"final_write_attempts"`
	MarkFailed         bool `toml:"mark_failed"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Records    RecordsConfig    `toml:"records"`
	Synthesis  SynthesisConfig  `toml:"synthesis"`
	Conversion ConversionConfig `toml:"conversion"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the post-speech service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file '%s': %w", path, err)
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	validationErr := cfg.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return cfg, nil
}

// ApplyDefaults fills every unset value with its default.
func (c *Config) ApplyDefaults() {
	setString(&c.NATS.PostCreatedSubject, defaultPostCreatedSubject)
	setString(&c.NATS.AudioObjectStoreBucket, defaultAudioBucket)
	setString(&c.NATS.PostsKVBucket, defaultPostsBucket)
	setString(&c.Server.ListenAddress, defaultListenAddress)
	setString(&c.Storage.PublicBaseURL, defaultPublicBaseURL)
	setString(&c.Storage.StagingDir, os.TempDir())
	setString(&c.Records.Driver, RecordDriverNATS)
	setString(&c.Records.SQLitePath, defaultSQLitePath)
	setString(&c.Synthesis.Provider, ProviderOpenAI)
	setString(&c.Synthesis.Model, defaultModel)
	setString(&c.Synthesis.APIKeyEnv, defaultAPIKeyEnv)
	setString(&c.Synthesis.OutputFormat, defaultOutputFormat)

	if format, ok := storageFormats[c.Synthesis.OutputFormat]; ok {
		setString(&c.Storage.ContentType, format.contentType)
		setString(&c.Storage.ObjectExtension, format.extension)
	}

	setString(&c.Synthesis.DefaultVoice, defaultVoice)
	setString(&c.Paths.BaseLogsDir, os.TempDir())

	setInt(&c.Synthesis.BlockLimit, defaultBlockLimit)
	setInt(&c.Synthesis.TimeoutSeconds, defaultSynthesisTimeout)
	setInt(&c.Synthesis.MaxAttempts, defaultMaxAttempts)
	setInt(&c.Synthesis.RetryBackoffMS, defaultRetryBackoffMillis)
	setInt(&c.Conversion.TimeoutSeconds, defaultConversionTimeout)
	setInt(&c.Conversion.FinalWriteAttempts, defaultFinalWriteAttempts)

	if c.Synthesis.Lookahead <= 0 {
		c.Synthesis.Lookahead = c.Synthesis.BlockLimit - defaultLookaheadMargin
		if c.Synthesis.Lookahead <= 0 {
			c.Synthesis.Lookahead = c.Synthesis.BlockLimit
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return ErrNATSURLEmpty
	}

	if c.Storage.PublicBaseURL == "" {
		return ErrPublicBaseURLEmpty
	}

	switch c.Records.Driver {
	case RecordDriverNATS, RecordDriverSQLite:
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownRecordDriver, c.Records.Driver)
	}

	switch c.Synthesis.Provider {
	case ProviderOpenAI:
	case ProviderHTTP:
		if c.Synthesis.ServiceURL == "" {
			return ErrServiceURLEmpty
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownProvider, c.Synthesis.Provider)
	}

	format, ok := storageFormats[c.Synthesis.OutputFormat]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownOutputFormat, c.Synthesis.OutputFormat)
	}

	if c.Storage.ContentType != format.contentType || c.Storage.ObjectExtension != format.extension {
		return fmt.Errorf("%w: %s is stored as %s with extension %s",
			ErrStorageFormatMismatch, c.Synthesis.OutputFormat, c.Storage.ContentType, c.Storage.ObjectExtension)
	}

	if c.Synthesis.Lookahead <= 0 || c.Synthesis.Lookahead > c.Synthesis.BlockLimit {
		return fmt.Errorf("%w: lookahead %d, block_limit %d",
			ErrLookaheadRange, c.Synthesis.Lookahead, c.Synthesis.BlockLimit)
	}

	if !c.VoiceAllowed(c.Synthesis.DefaultVoice) {
		return fmt.Errorf("%w: '%s'", ErrDefaultVoiceNotAllowed, c.Synthesis.DefaultVoice)
	}

	return nil
}

// VoiceAllowed reports whether voice passes the allowed_voices whitelist.
// An empty whitelist allows every voice.
func (c *Config) VoiceAllowed(voice string) bool {
	if len(c.Synthesis.AllowedVoices) == 0 {
		return true
	}

	return slices.Contains(c.Synthesis.AllowedVoices, voice)
}

func setString(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if *target <= 0 {
		*target = value
	}
}
