// Package memory records published run summaries in-process.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Message is one publish call as it would appear on the wire.
type Message struct {
	Topic string
	Data  []byte
}

// Publisher keeps the JSON of every published payload.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	failWith error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes subsequent publishes return err (nil restores success).
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

// Publish encodes payload like the Pub/Sub publisher does and returns a pseudo id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.messages = append(p.messages, Message{Topic: topic, Data: data})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Summaries decodes every recorded message as a run summary.
func (p *Publisher) Summaries() ([]board.RunSummary, error) {
	msgs := p.Messages()
	out := make([]board.RunSummary, 0, len(msgs))
	for _, m := range msgs {
		var s board.RunSummary
		if err := json.Unmarshal(m.Data, &s); err != nil {
			return nil, fmt.Errorf("decode run summary: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
