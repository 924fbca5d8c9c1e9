package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes an event onto a real-time channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// Envelope is the wire format carried on a real-time channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notifications: encode payload: %w", err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// RedisPublisher fans events out through Redis PUBLISH so every API node's
// relay sees them.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	if client == nil {
		panic("notifications: redis client required")
	}
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("notifications: redis publish: %w", err)
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
