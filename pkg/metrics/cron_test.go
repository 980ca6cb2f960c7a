package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_780_000_000, 0) }

	m.ObserveDuration("ride-sweep", 250*time.Millisecond)
	m.IncSuccess("ride-sweep")
	m.IncSuccess("ride-sweep")
	m.IncFailure("outbox-retention")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findFamily(t, mfs, "cron_job_runs_total")
	require.Equal(t, 2.0, metricWith(t, runs, map[string]string{"job": "ride-sweep", "result": "success"}).GetCounter().GetValue())
	require.Equal(t, 1.0, metricWith(t, runs, map[string]string{"job": "outbox-retention", "result": "failure"}).GetCounter().GetValue())

	last := findFamily(t, mfs, "cron_job_last_success_timestamp_seconds")
	require.Equal(t, 1_780_000_000.0, metricWith(t, last, map[string]string{"job": "ride-sweep"}).GetGauge().GetValue())
	require.Len(t, last.GetMetric(), 1, "failures never stamp a success")

	duration := findFamily(t, mfs, "cron_job_duration_seconds")
	require.InDelta(t, 0.25, metricWith(t, duration, map[string]string{"job": "ride-sweep"}).GetHistogram().GetSampleSum(), 1e-9)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSuccess("ride-sweep")
	m.IncFailure("ride-sweep")
	m.ObserveDuration("ride-sweep", time.Second)

	unregistered := NewCronJobMetrics(nil)
	unregistered.IncSuccess("")
}

func findFamily(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %q not found", name)
	return nil
}

func metricWith(t *testing.T, mf *dto.MetricFamily, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return metric
		}
	}
	t.Fatalf("metric %q has no series %v", mf.GetName(), labels)
	return nil
}
