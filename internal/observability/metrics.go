package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "conn",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by outcome.",
		},
		[]string{"outcome"},
	)
	reconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "conn",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnections scheduled after abnormal closes.",
		},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "protocol",
			Name:      "messages_total",
			Help:      "Protocol messages received by type.",
		},
		[]string{"type"},
	)
	unreadCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "beacon",
			Subsystem: "store",
			Name:      "unread_count",
			Help:      "Current unread notification count.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, reconnectsScheduled, messagesReceived, unreadCount)
	})
}

// RecordConnectAttempt counts one connection attempt. The attempt id
// is attached as an exemplar so a spike in a given outcome can be
// traced back to the matching log lines.
func RecordConnectAttempt(outcome, attemptID string) {
	RegisterMetrics()
	c := connectAttempts.WithLabelValues(outcome)
	if adder, ok := c.(prometheus.ExemplarAdder); ok && attemptID != "" {
		adder.AddWithExemplar(1, prometheus.Labels{"attempt_id": attemptID})
		return
	}
	c.Inc()
}

func RecordReconnectScheduled() {
	RegisterMetrics()
	reconnectsScheduled.Inc()
}

func RecordMessage(msgType string) {
	RegisterMetrics()
	messagesReceived.WithLabelValues(msgType).Inc()
}

func SetUnreadCount(n int) {
	RegisterMetrics()
	unreadCount.Set(float64(n))
}
