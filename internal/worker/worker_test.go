// Package worker_test tests the NATS worker for the post-speech service.
package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/notify"
	"github.com/book-expert/post-speech-service/internal/worker"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHandler records the ids it was asked to convert.
type mockHandler struct {
	handled chan string
}

func (m *mockHandler) Handle(_ context.Context, id string) {
	m.handled <- id
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		server.Shutdown()
		natsConnection.Close()
	}

	return natsConnection, cleanup
}

func setupTest(t *testing.T) (*worker.NatsWorker, *mockHandler, *nats.Conn) {
	t.Helper()

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	handler := &mockHandler{handled: make(chan string, 4)}

	workerInstance, err := worker.NewNatsWorker(natsConnection, "test_subject", handler, testLogger)
	require.NoError(t, err)

	return workerInstance, handler, natsConnection
}

func runWorker(t *testing.T, workerInstance *worker.NatsWorker) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	select {
	case <-workerInstance.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not subscribe")
	}

	return func() error {
		cancel()

		return <-errChan
	}
}

func waitForID(t *testing.T, handler *mockHandler) string {
	t.Helper()

	select {
	case id := <-handler.handled:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")

		return ""
	}
}

func TestMessageHandler_Event(t *testing.T) {
	t.Parallel()

	workerInstance, handler, natsConnection := setupTest(t)
	stop := runWorker(t, workerInstance)

	eventData, err := json.Marshal(notify.NewEvent("post-7"))
	require.NoError(t, err)

	require.NoError(t, natsConnection.Publish("test_subject", eventData))
	assert.Equal(t, "post-7", waitForID(t, handler))

	assert.NoError(t, stop(), "worker.Run should not error on graceful shutdown")
}

func TestMessageHandler_BareID(t *testing.T) {
	t.Parallel()

	workerInstance, handler, natsConnection := setupTest(t)
	stop := runWorker(t, workerInstance)

	require.NoError(t, natsConnection.Publish("test_subject", []byte("  post-9\n")))
	assert.Equal(t, "post-9", waitForID(t, handler))

	require.NoError(t, stop())
}

func TestMessageHandler_InvalidMessageIsSkipped(t *testing.T) {
	t.Parallel()

	workerInstance, handler, natsConnection := setupTest(t)
	stop := runWorker(t, workerInstance)

	require.NoError(t, natsConnection.Publish("test_subject", []byte(`{"post_id": ""}`)))
	require.NoError(t, natsConnection.Publish("test_subject", []byte(`{broken`)))
	require.NoError(t, natsConnection.Publish("test_subject", []byte("post-10")))

	assert.Equal(t, "post-10", waitForID(t, handler), "invalid messages never reach the handler")

	require.NoError(t, stop())
}

func TestParsePostID(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "event", payload: `{"post_id":"abc"}`, want: "abc", wantErr: false},
		{name: "bare id", payload: "abc", want: "abc", wantErr: false},
		{name: "quoted id", payload: `"abc"`, want: "abc", wantErr: false},
		{name: "empty", payload: "  ", want: "", wantErr: true},
		{name: "event without id", payload: `{"header":{}}`, want: "", wantErr: true},
		{name: "malformed json", payload: `{"post_id":`, want: "", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := worker.ParsePostID([]byte(testCase.payload))
			if testCase.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestNewNatsWorker_Validation(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, "subject", &mockHandler{handled: nil}, nil)
	require.ErrorIs(t, err, worker.ErrConnectionNil)

	_, err = worker.NewNatsWorker(&nats.Conn{}, "subject", nil, nil)
	require.ErrorIs(t, err, worker.ErrHandlerNil)
}
