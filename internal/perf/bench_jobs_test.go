package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/procureflow/internal/jobs"
)

func TestStatusJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Status emails are small and mostly succeed.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("mail:status")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending email tracker: %v", err)
		}
	}

	// Purges touch more rows but must stay within the 2s budget.
	for i := 0; i < 5; i++ {
		tracker := metrics.Track("notifications:purge")
		time.Sleep(20 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending purge tracker: %v", err)
		}
	}

	// A few SMTP timeouts so the failure series exists.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("mail:status")
		time.Sleep(3 * time.Millisecond)
		if err := tracker.End(errors.New("smtp timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "procureflow_jobs_total", map[string]string{"job": "mail:status", "status": "success"})
	failure := metricValue(t, families, "procureflow_jobs_total", map[string]string{"job": "mail:status", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no email job executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("email job success ratio too low: %f", ratio)
	}

	purgeDuration := histogramMean(t, families, "procureflow_job_duration_seconds", map[string]string{"job": "notifications:purge"})
	if purgeDuration > 2.0 {
		t.Fatalf("purge duration above budget: %f", purgeDuration)
	}

	emailDuration := histogramMean(t, families, "procureflow_job_duration_seconds", map[string]string{"job": "mail:status"})
	if emailDuration > 0.5 {
		t.Fatalf("email duration above budget: %f", emailDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
