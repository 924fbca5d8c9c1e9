package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveOperation("book", "ok")
	m.ObserveOperation("book", "ok")
	m.ObserveOperation("book", "slot_unavailable")
	m.ObserveAvailabilityLatency(0.02)
	m.AddCompleted(3)
	m.AddCompleted(0)

	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("book", "ok")); got != 2 {
		t.Fatalf("expected 2 successful bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.completedTotal); got != 3 {
		t.Fatalf("expected 3 completed, got %v", got)
	}
}

func TestNotificationMetricsGathered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewNotificationMetrics(reg)
	m.ObserveEmitted("NEW_APPOINTMENT")
	m.ObservePublish("error")
	m.ObserveEmail("sent")
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	clients, ok := byName["careconnect_notifications_websocket_clients"]
	if !ok {
		t.Fatalf("websocket gauge not registered: %v", byName)
	}
	if got := clients.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Fatalf("expected 1 connected client, got %v", got)
	}
	publish := byName["careconnect_notifications_publish_total"]
	if publish == nil || publish.GetMetric()[0].GetLabel()[0].GetValue() != "error" {
		t.Fatalf("unexpected publish family: %v", publish)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BookingMetrics
	b.ObserveOperation("book", "ok")
	b.ObserveAvailabilityLatency(0.1)
	b.AddCompleted(1)

	var n *NotificationMetrics
	n.ObserveEmitted("REVIEW")
	n.ObservePublish("ok")
	n.ObserveEmail("failed")
	n.ClientConnected()
	n.ClientDisconnected()
}
