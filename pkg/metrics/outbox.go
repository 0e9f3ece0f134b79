package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes for relayed outbox events.
const (
	RelayOutcomePublished    = "published"
	RelayOutcomeRetry        = "retry"
	RelayOutcomeDeadLettered = "dead_lettered"
)

// OutboxRelayMetrics counts events moved from the outbox table to Pub/Sub.
type OutboxRelayMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Histogram
}

func NewOutboxRelayMetrics(reg prometheus.Registerer) *OutboxRelayMetrics {
	if reg == nil {
		return &OutboxRelayMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_events_total",
		Help: "Outbox events relayed by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_relay_batch_size",
		Help:    "Rows claimed per relay batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(events, batches)
	return &OutboxRelayMetrics{events: events, batches: batches}
}

func (m *OutboxRelayMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxRelayMetrics) ObserveBatch(size int) {
	if m == nil || m.batches == nil || size <= 0 {
		return
	}
	m.batches.Observe(float64(size))
}

// Outcomes for events received by a subscriber.
const (
	DeliveryOutcomeHandled   = "handled"
	DeliveryOutcomeDuplicate = "duplicate"
	DeliveryOutcomeDropped   = "dropped"
	DeliveryOutcomeRetry     = "retry"
)

// ConsumerMetrics counts deliveries per subscriber and times their handlers.
type ConsumerMetrics struct {
	deliveries *prometheus.CounterVec
	handling   *prometheus.HistogramVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_consumer_deliveries_total",
		Help: "Relayed events received by consumer, event type and outcome.",
	}, []string{"consumer", "event_type", "outcome"})
	handling := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_consumer_handle_seconds",
		Help:    "Handler time per consumer and event type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer", "event_type"})
	reg.MustRegister(deliveries, handling)
	return &ConsumerMetrics{deliveries: deliveries, handling: handling}
}

func (m *ConsumerMetrics) IncDelivery(consumer, eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(consumer), normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *ConsumerMetrics) ObserveHandle(consumer, eventType string, seconds float64) {
	if m == nil || m.handling == nil {
		return
	}
	m.handling.WithLabelValues(normalizeLabel(consumer), normalizeLabel(eventType)).Observe(seconds)
}
