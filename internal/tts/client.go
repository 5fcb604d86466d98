// Package tts provides the speech synthesizers used by the conversion
// orchestrator: a client for a standalone speech service over HTTP, an
// OpenAI speech client, and a retrying decorator for either.
package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/post-speech-service/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected %s, got %s"
	errFmtServiceErrorWithCode  = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "TTS service returned non-OK status: %s, body: %s"
)

var (
	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates that the service answered with no audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
)

var mediaTypes = map[core.OutputFormat]string{
	core.FormatMP3: "audio/mpeg",
	core.FormatWAV: "audio/wav",
	core.FormatOGG: "audio/ogg",
}

// MediaType returns the MIME type of format, defaulting to audio/mpeg.
func MediaType(format core.OutputFormat) string {
	mediaType, ok := mediaTypes[format]
	if !ok {
		return mediaTypes[core.FormatMP3]
	}

	return mediaType
}

// HTTPClient is a core.Synthesizer for a standalone speech service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// Request is the JSON payload sent to the speech service.
type Request struct {
	Text         string `json:"text"`
	Voice        string `json:"voice,omitempty"`
	OutputFormat string `json:"output_format"`
}

// ErrorResponse is a structured error returned by the speech service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the service at baseURL
// (e.g. "http://localhost:8000"). The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends one block of text to the service and returns the audio
// stream. The stream is not inspected beyond checking that it is non-empty.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) (io.ReadCloser, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	format := req.Format
	if format == "" {
		format = core.FormatMP3
	}

	requestBody, err := json.Marshal(Request{
		Text:         req.Text,
		Voice:        req.Voice,
		OutputFormat: string(format),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	expectedType := MediaType(format)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, expectedType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, expectedType) {
		_ = resp.Body.Close()

		return nil, fmt.Errorf(errFmtUnexpectedContentType, expectedType, contentType)
	}

	buffered := bufio.NewReader(resp.Body)

	_, peekErr := buffered.Peek(1)
	if peekErr != nil {
		_ = resp.Body.Close()

		if errors.Is(peekErr, io.EOF) {
			return nil, ErrEmptyAudio
		}

		return nil, fmt.Errorf("failed to read audio data: %w", peekErr)
	}

	return &bufferedBody{Reader: buffered, closer: resp.Body}, nil
}

// HealthCheck verifies that the speech service is running.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

type bufferedBody struct {
	*bufio.Reader

	closer io.Closer
}

func (b *bufferedBody) Close() error {
	return b.closer.Close()
}

// parseErrorResponse decodes a structured JSON error from the service and
// falls back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, readErr.Error())
	}

	var errorResp ErrorResponse

	err := parseJSON(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

func parseJSON(data []byte, target any) error {
	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
