package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/sashabaranov/go-openai"
)

// ErrAPIKeyEmpty indicates that no OpenAI API key was supplied.
var ErrAPIKeyEmpty = errors.New("openai api key cannot be empty")

var speechFormats = map[core.OutputFormat]openai.SpeechResponseFormat{
	core.FormatMP3: openai.SpeechResponseFormatMp3,
	core.FormatWAV: openai.SpeechResponseFormatWav,
	core.FormatOGG: openai.SpeechResponseFormatOpus,
}

// OpenAISynthesizer is a core.Synthesizer backed by the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAISynthesizer creates a synthesizer using model with the given key.
func NewOpenAISynthesizer(apiKey, model string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyEmpty
	}

	return NewOpenAISynthesizerWithConfig(openai.DefaultConfig(apiKey), model), nil
}

// NewOpenAISynthesizerWithConfig creates a synthesizer from a prepared client
// configuration, e.g. one pointing at a compatible self-hosted endpoint.
func NewOpenAISynthesizerWithConfig(clientConfig openai.ClientConfig, model string) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.SpeechModel(model),
	}
}

// Synthesize requests speech for one block of text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) (io.ReadCloser, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	responseFormat, ok := speechFormats[req.Format]
	if !ok {
		responseFormat = openai.SpeechResponseFormatMp3
	}

	speech, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech with model '%s': %w", s.model, err)
	}

	return speech.ReadCloser, nil
}
