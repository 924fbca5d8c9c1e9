package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
)

func TestHubDeliversOnlyToChannel(t *testing.T) {
	hub := NewHub(metrics.NewNotificationMetrics(prometheus.NewRegistry()))
	alice, bob := uuid.New(), uuid.New()
	a := newClient(Channel(alice))
	b := newClient(Channel(bob))
	hub.Register(a)
	hub.Register(b)

	require.NoError(t, hub.Publish(context.Background(), Channel(alice), EventNew, map[string]string{"title": "hello"}))

	select {
	case body := <-a.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, EventNew, env.Event)
		assert.JSONEq(t, `{"title":"hello"}`, string(env.Data))
	default:
		t.Fatal("expected alice to receive the event")
	}
	assert.Empty(t, b.Send)

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 0, hub.ClientCount(Channel(alice)))
	assert.Equal(t, 1, hub.ClientCount(Channel(bob)))
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHubSkipsFullClients(t *testing.T) {
	hub := NewHub(nil)
	c := newClient("notifications-x")
	hub.Register(c)
	for i := 0; i < clientBuffer; i++ {
		assert.Equal(t, 1, hub.Deliver("notifications-x", []byte("{}")))
	}
	assert.Equal(t, 0, hub.Deliver("notifications-x", []byte("{}")))
}

func TestRedisPublisherAndRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(nil)
	user := uuid.New()
	c := newClient(Channel(user))
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewRelay(client, hub, nil).Run(ctx) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, 2*time.Second, 10*time.Millisecond)

	n := Notification{ID: uuid.New(), Type: TypeNewAppointment, Title: "New appointment", UserID: user}
	require.NoError(t, NewRedisPublisher(client).Publish(ctx, Channel(user), EventNew, n))

	select {
	case body := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, EventNew, env.Event)
		var got Notification
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, TypeNewAppointment, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward the published notification")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRedisPublisherReportsFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisPublisher(client).Publish(context.Background(), "notifications-x", EventNew, map[string]string{})
	assert.Error(t, err)
}
