package notifications

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
)

const clientBuffer = 64

// Client is one live real-time connection, bound to exactly one channel.
type Client struct {
	ID      uuid.UUID
	Channel string
	Send    chan []byte
}

func newClient(channel string) *Client {
	return &Client{ID: uuid.New(), Channel: channel, Send: make(chan []byte, clientBuffer)}
}

// Hub tracks connected clients by channel and fans raw envelopes out to them.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	metrics  *metrics.NotificationMetrics
}

func NewHub(m *metrics.NotificationMetrics) *Hub {
	return &Hub{channels: make(map[string]map[*Client]struct{}), metrics: m}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[c.Channel]
	if !ok {
		set = make(map[*Client]struct{})
		h.channels[c.Channel] = set
	}
	set[c] = struct{}{}
	h.metrics.ClientConnected()
}

// Unregister removes the client and closes its Send channel. Calling it
// twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[c.Channel]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.channels, c.Channel)
	}
	close(c.Send)
	h.metrics.ClientDisconnected()
}

// Deliver writes an encoded envelope to every client on channel. Slow
// clients with a full buffer miss the message.
func (h *Hub) Deliver(channel string, body []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.channels[channel] {
		select {
		case c.Send <- body:
			delivered++
		default:
		}
	}
	return delivered
}

// Publish lets a single node deliver directly without Redis.
func (h *Hub) Publish(_ context.Context, channel, event string, payload any) error {
	body, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	h.Deliver(channel, body)
	return nil
}

func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

var _ Publisher = (*Hub)(nil)
