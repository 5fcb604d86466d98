package tts_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/book-expert/post-speech-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudioData = "ID3-fake-mp3-data"

func standardRequest() core.SynthesisRequest {
	return core.SynthesisRequest{
		Text:   "Hello, world!",
		Voice:  "alloy",
		Format: core.FormatMP3,
	}
}

func TestHTTPClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/v1/generate/speech", request.URL.Path)
		assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
		assert.Equal(t, "audio/mpeg", request.Header.Get("Accept"))

		var payload tts.Request

		decodeErr := json.NewDecoder(request.Body).Decode(&payload)
		assert.NoError(t, decodeErr)
		assert.Equal(t, "Hello, world!", payload.Text)
		assert.Equal(t, "alloy", payload.Voice)
		assert.Equal(t, "mp3", payload.OutputFormat)

		responseWriter.Header().Set("Content-Type", "audio/mpeg")
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte(testAudioData))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL+"/", 10*time.Second)

	stream, err := client.Synthesize(context.Background(), standardRequest())
	require.NoError(t, err)

	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, testAudioData, string(data))
}

func TestHTTPClient_Synthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := tts.NewHTTPClient("http://localhost:8000", 10*time.Second)

	req := standardRequest()
	req.Text = ""

	_, err := client.Synthesize(context.Background(), req)
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}

func TestHTTPClient_Synthesize_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set("Content-Type", "application/json")
		responseWriter.WriteHeader(http.StatusInternalServerError)

		_ = json.NewEncoder(responseWriter).Encode(tts.ErrorResponse{
			Detail:    "Model failed to load",
			ErrorCode: "MODEL_LOAD_ERROR",
		})
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 10*time.Second)

	_, err := client.Synthesize(context.Background(), standardRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTS service error")
	assert.Contains(t, err.Error(), "Model failed to load")
	assert.Contains(t, err.Error(), "MODEL_LOAD_ERROR")
}

func TestHTTPClient_Synthesize_PlainTextError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusBadGateway)
		_, _ = responseWriter.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 10*time.Second)

	_, err := client.Synthesize(context.Background(), standardRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-OK status")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestHTTPClient_Synthesize_WrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/plain")
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte("not audio data"))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 10*time.Second)

	_, err := client.Synthesize(context.Background(), standardRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestHTTPClient_Synthesize_EmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set("Content-Type", "audio/mpeg")
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 10*time.Second)

	_, err := client.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, tts.ErrEmptyAudio)
}

func TestHTTPClient_Synthesize_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		responseWriter.Header().Set("Content-Type", "audio/mpeg")
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte(testAudioData))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 50*time.Millisecond)

	_, err := client.Synthesize(context.Background(), standardRequest())
	require.Error(t, err)
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/health", request.URL.Path)
		assert.Equal(t, http.MethodGet, request.Method)
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	require.NoError(t, tts.NewHTTPClient(healthy.URL, time.Second).HealthCheck(context.Background()))

	unhealthy := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	require.Error(t, tts.NewHTTPClient(unhealthy.URL, time.Second).HealthCheck(context.Background()))

	require.Error(t, tts.NewHTTPClient("http://127.0.0.1:1", 100*time.Millisecond).HealthCheck(context.Background()))
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/mpeg", tts.MediaType(core.FormatMP3))
	assert.Equal(t, "audio/wav", tts.MediaType(core.FormatWAV))
	assert.Equal(t, "audio/ogg", tts.MediaType(core.FormatOGG))
	assert.Equal(t, "audio/mpeg", tts.MediaType("flac"))
}
