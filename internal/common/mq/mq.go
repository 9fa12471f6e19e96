package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is the unit carried through the queue.
type Message struct {
	ID        string
	Body      []byte
	Timestamp time.Time
}

// NewMessage creates a message with a generated id.
func NewMessage(body []byte) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Body:      body,
		Timestamp: time.Now(),
	}
}

// Publisher publishes messages to a topic. Implementations must be safe for
// concurrent use by judge workers.
type Publisher interface {
	Publish(ctx context.Context, topic string, message *Message) error
	Close() error
}
