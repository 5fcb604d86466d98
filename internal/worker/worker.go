// Package worker provides a NATS worker that converts posts announced on a subject.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/nats-io/nats.go"
)

var (
	// ErrConnectionNil indicates that no NATS connection was supplied.
	ErrConnectionNil = errors.New("nats connection cannot be nil")
	// ErrHandlerNil indicates that no conversion handler was supplied.
	ErrHandlerNil = errors.New("handler cannot be nil")
	// ErrEmptyPostID indicates a message that carries no post id.
	ErrEmptyPostID = errors.New("message carries no post id")
)

// Handler runs the conversion of one post and reports only to its own log.
type Handler interface {
	Handle(ctx context.Context, id string)
}

// NatsWorker listens for post created events on a NATS subject and converts them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	handler        Handler
	log            *logger.Logger
	ready          chan struct{}
	readyOnce      sync.Once
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	handler Handler,
	log *logger.Logger,
) (*NatsWorker, error) {
	if natsConnection == nil {
		return nil, ErrConnectionNil
	}

	if handler == nil {
		return nil, ErrHandlerNil
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		handler:        handler,
		log:            log,
		ready:          make(chan struct{}),
		readyOnce:      sync.Once{},
	}, nil
}

// Run subscribes and processes messages, one at a time, until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	flushErr := w.natsConnection.Flush()
	if flushErr != nil {
		_ = sub.Unsubscribe()

		return fmt.Errorf("failed to register subscription to %s: %w", w.subject, flushErr)
	}

	w.readyOnce.Do(func() { close(w.ready) })
	w.log.Info("Listening for posts on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

// Ready is closed once the subscription is registered with the server.
func (w *NatsWorker) Ready() <-chan struct{} {
	return w.ready
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	id, err := ParsePostID(msg.Data)
	if err != nil {
		w.log.Error("Failed to parse post created message: %v", err)

		return
	}

	w.handler.Handle(context.Background(), id)
}

// ParsePostID extracts the post id from a core.PostCreatedEvent payload.
// A payload that is not a JSON object is taken as a bare id.
func ParsePostID(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", ErrEmptyPostID
	}

	if !strings.HasPrefix(trimmed, "{") {
		return strings.Trim(trimmed, `"`), nil
	}

	var event core.PostCreatedEvent

	err := json.Unmarshal([]byte(trimmed), &event)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.PostID == "" {
		return "", ErrEmptyPostID
	}

	return event.PostID, nil
}
