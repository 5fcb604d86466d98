// Package notify announces newly created posts on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// flushTimeout bounds the flush when the caller's context has no deadline.
const flushTimeout = 5 * time.Second

var (
	// ErrConnectionNil indicates that no NATS connection was supplied.
	ErrConnectionNil = errors.New("nats connection cannot be nil")
	// ErrSubjectEmpty indicates that no subject was supplied.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
)

// NatsNotifier publishes core.PostCreatedEvent messages.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
}

// NewNatsNotifier creates a notifier publishing on subject.
func NewNatsNotifier(natsConnection *nats.Conn, subject string) (*NatsNotifier, error) {
	if natsConnection == nil {
		return nil, ErrConnectionNil
	}

	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsNotifier{natsConnection: natsConnection, subject: subject}, nil
}

// NewEvent builds the event announcing post id. Every event starts a new workflow.
func NewEvent(id string) *core.PostCreatedEvent {
	return &core.PostCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now().UTC(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		PostID: id,
	}
}

// PostCreated publishes the event for id and waits until the server has it.
func (n *NatsNotifier) PostCreated(ctx context.Context, id string) error {
	data, err := json.Marshal(NewEvent(id))
	if err != nil {
		return fmt.Errorf("failed to marshal post created event: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish post created event to %s: %w", n.subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}

	flushErr := n.natsConnection.FlushWithContext(ctx)
	if flushErr != nil {
		return fmt.Errorf("failed to flush post created event: %w", flushErr)
	}

	return nil
}
