// Package memory implements an in-memory publisher for tests and
// local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/toolradar/toolradar/internal/radar"
)

// PublishedMessage records one published payload.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// Publisher collects published messages in memory.
type Publisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
}

var _ radar.Publisher = (*Publisher)(nil)

// New creates an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
