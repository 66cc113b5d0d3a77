package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("dashboard-refresh", 250*time.Millisecond)
	m.IncSuccess("dashboard-refresh")
	m.IncFailure("")
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "reciclaje_cron_job_success_total", "job", "dashboard-refresh")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = counterValue(mfs, "reciclaje_cron_job_failure_total", "job", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	sum, err := histogramSum(mfs, "reciclaje_cron_job_duration_seconds", "job", "dashboard-refresh")
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)

	skipped := findFamily(mfs, "reciclaje_cron_cycle_skipped_total")
	require.NotNil(t, skipped)
	assert.Equal(t, 1.0, skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestPickupMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPickupMetrics(reg)
	m.IncCreated("PET")
	m.IncCreated("PET")
	m.IncTransition("EN_ROUTE", "COMPLETED")
	m.IncTransition("EN_ROUTE", "EN_ROUTE")
	m.AddAssigned(3)
	m.AddAssigned(0)
	m.IncRejected("edit", "forbidden")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "reciclaje_pickups_created_total", "material", "PET")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = counterValue(mfs, "reciclaje_pickups_status_transitions_total", "to", "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
	_, err = counterValue(mfs, "reciclaje_pickups_status_transitions_total", "to", "EN_ROUTE")
	assert.Error(t, err, "self transitions are not counted")

	assigned := findFamily(mfs, "reciclaje_pickups_bulk_assigned_total")
	require.NotNil(t, assigned)
	assert.Equal(t, 3.0, assigned.GetMetric()[0].GetCounter().GetValue())
}

func TestNilRegistererIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCronJobMetrics(nil).IncSuccess("x")
		NewPickupMetrics(nil).IncCreated("PET")
		NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
		var m *PickupMetrics
		m.AddAssigned(1)
	})
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/api/v1/requests", 200, 10*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := histogramSum(mfs, "reciclaje_http_request_duration_seconds", "route", "/api/v1/requests")
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)
}

func counterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func histogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
