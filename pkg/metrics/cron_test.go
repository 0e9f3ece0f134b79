package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "pending-order-dispatch"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncRun(job, JobOutcomeSuccess)
	metrics.IncRun(job, JobOutcomeSkipped)
	metrics.IncRun(job, JobOutcomeSkipped)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", JobOutcomeSkipped); err != nil {
		t.Fatalf("fetch skipped: %v", err)
	} else if got != 2 {
		t.Fatalf("expected skipped=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 0.25 {
		t.Fatalf("expected duration sum 0.25, got %f", got)
	}
	if findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds") == nil {
		t.Fatalf("last success gauge not exported")
	}
}

func TestOutboxRelayMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOutboxRelayMetrics(reg)
	metrics.IncEvent("purchase_order_approved", RelayOutcomePublished)
	metrics.IncEvent("purchase_order_approved", RelayOutcomeDeadLettered)
	metrics.ObserveBatch(0)
	metrics.ObserveBatch(12)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_relay_events_total", "outcome", RelayOutcomeDeadLettered); err != nil {
		t.Fatalf("fetch dead lettered: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 dead-lettered event, got %f", got)
	}
	batches := findMetricFamily(mfs, "outbox_relay_batch_size")
	if batches == nil || batches.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one observed batch")
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestLogisticsMetricsCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLogisticsMetrics(reg)
	metrics.IncSyncRequest("Company", SyncOutcomeBusinessFailure)
	metrics.IncSyncRequest("Company", SyncOutcomeBusinessFailure)
	metrics.IncMessageProcessed("SHIP_ORDER", MessageOutcomeProcessed)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "logistics_sync_requests_total", "outcome", SyncOutcomeBusinessFailure); err != nil {
		t.Fatalf("fetch sync requests: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 business failures, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "logistics_messages_processed_total", "type", "SHIP_ORDER"); err != nil {
		t.Fatalf("fetch processed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 processed message, got %f", got)
	}
}

func TestNilLogisticsMetricsIsNoop(t *testing.T) {
	var metrics *LogisticsMetrics
	metrics.IncSyncRequest("Sku", SyncOutcomeOK)
	NewLogisticsMetrics(nil).IncMessageProcessed("SHIP_ORDER", MessageOutcomeFailed)
}
