package notifications

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Relay forwards notification envelopes published on Redis to the clients
// connected to this node's hub.
type Relay struct {
	client redis.UniversalClient
	hub    *Hub
	logger *logging.Logger
}

func NewRelay(client redis.UniversalClient, hub *Hub, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{client: client, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("notifications: relay subscribe: %w", err)
	}
	r.logger.Info("notification relay subscribed", "pattern", channelPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n := r.hub.Deliver(msg.Channel, []byte(msg.Payload))
			r.logger.Debug("relayed notification", "channel", msg.Channel, "clients", n)
		}
	}
}

// Start runs the relay in the background and logs a terminal failure.
func (r *Relay) Start(ctx context.Context) {
	go func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("notification relay stopped", "error", err)
		}
	}()
}
