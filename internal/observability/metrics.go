package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	streamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p4ctl",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Stream messages received from the device, by tag.",
		},
		[]string{"tag"},
	)
	streamDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p4ctl",
			Subsystem: "stream",
			Name:      "discarded_total",
			Help:      "Stream messages discarded while waiting for another tag.",
		},
		[]string{"tag"},
	)
	writes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p4ctl",
			Subsystem: "write",
			Name:      "requests_total",
			Help:      "Batched write requests, by outcome.",
		},
		[]string{"outcome"},
	)
	writeItemFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p4ctl",
			Subsystem: "write",
			Name:      "item_failures_total",
			Help:      "Per-item write failures, by canonical code.",
		},
		[]string{"code"},
	)
	arbitrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p4ctl",
			Subsystem: "session",
			Name:      "arbitrations_total",
			Help:      "Completed arbitration handshakes, by granted role.",
		},
		[]string{"role"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(streamMessages, streamDiscarded, writes, writeItemFailures, arbitrations)
	})
}

func RecordStreamMessage(tag string) {
	RegisterMetrics()
	streamMessages.WithLabelValues(tag).Inc()
}

func RecordStreamDiscarded(tag string) {
	RegisterMetrics()
	streamDiscarded.WithLabelValues(tag).Inc()
}

func RecordWrite(outcome string) {
	RegisterMetrics()
	writes.WithLabelValues(outcome).Inc()
}

func RecordWriteItemFailure(code string) {
	RegisterMetrics()
	writeItemFailures.WithLabelValues(code).Inc()
}

func RecordArbitration(role string) {
	RegisterMetrics()
	arbitrations.WithLabelValues(role).Inc()
}
