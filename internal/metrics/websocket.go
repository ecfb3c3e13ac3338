package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the connection registry and broadcaster.
// A nil *WebSocketMetrics records nothing.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	BroadcastsTotal   *prometheus.CounterVec
	SendFailuresTotal prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections.",
		}),
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcasts_total",
			Help:      "Total number of envelopes broadcast, by event type.",
		}, []string{"type"}),
		SendFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_failures_total",
			Help:      "Total number of per-connection delivery failures.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.BroadcastsTotal, m.SendFailuresTotal)
	return m
}

func (m *WebSocketMetrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

func (m *WebSocketMetrics) RecordBroadcast(eventType string) {
	if m == nil {
		return
	}
	m.BroadcastsTotal.WithLabelValues(eventType).Inc()
}

func (m *WebSocketMetrics) RecordSendFailure() {
	if m == nil {
		return
	}
	m.SendFailuresTotal.Inc()
}
