// Package pubsub announces finished runs on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Publisher publishes JSON run summaries to one topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New wraps a topic handle obtained from client.Topic(name).
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals payload to JSON and waits for the server-assigned message id.
// The topic argument is informational; the handle passed to New decides the target.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{
		Data:       data,
		Attributes: attributes(payload),
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// attributes exposes routing fields so subscribers can filter without decoding.
func attributes(payload any) map[string]string {
	type staged interface{ StageName() string }
	if s, ok := payload.(staged); ok {
		return map[string]string{"stage": s.StageName()}
	}
	return nil
}
