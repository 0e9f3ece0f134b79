package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes for logistics center sync requests.
const (
	SyncOutcomeOK               = "ok"
	SyncOutcomeBusinessFailure  = "business_failure"
	SyncOutcomeTransportFailure = "transport_failure"
)

// Outcomes for processed logistics center messages.
const (
	MessageOutcomeProcessed = "processed"
	MessageOutcomeMalformed = "malformed"
	MessageOutcomeNotFound  = "reference_not_found"
	MessageOutcomeFailed    = "failed"
)

// LogisticsMetrics counts traffic with the logistics center.
type LogisticsMetrics struct {
	syncRequests      *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
}

// NewLogisticsMetrics registers the logistics counters on reg. A nil
// registerer yields a no-op recorder.
func NewLogisticsMetrics(reg prometheus.Registerer) *LogisticsMetrics {
	if reg == nil {
		return &LogisticsMetrics{}
	}
	syncRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logistics_sync_requests_total",
		Help: "Requests submitted to the logistics center by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	messagesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logistics_messages_processed_total",
		Help: "Logistics center messages processed by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(syncRequests, messagesProcessed)
	return &LogisticsMetrics{
		syncRequests:      syncRequests,
		messagesProcessed: messagesProcessed,
	}
}

// IncSyncRequest counts one sync request.
func (m *LogisticsMetrics) IncSyncRequest(endpoint, outcome string) {
	if m == nil || m.syncRequests == nil {
		return
	}
	m.syncRequests.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Inc()
}

// IncMessageProcessed counts one processing attempt.
func (m *LogisticsMetrics) IncMessageProcessed(messageType, outcome string) {
	if m == nil || m.messagesProcessed == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(normalizeLabel(messageType), normalizeLabel(outcome)).Inc()
}
