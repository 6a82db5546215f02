// Package metrics exports tracker activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"nearby/internal/tracking"
)

// TrackerMetrics implements tracking.Observer.
type TrackerMetrics struct {
	fixes      *prometheus.CounterVec
	failures   *prometheus.CounterVec
	tracking   prometheus.Gauge
	lastFix    prometheus.Gauge
	permission *prometheus.GaugeVec
}

func NewTrackerMetrics(reg prometheus.Registerer) *TrackerMetrics {
	m := &TrackerMetrics{
		fixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_position_fixes_total",
			Help: "Position readings applied, by trigger.",
		}, []string{"trigger"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_position_errors_total",
			Help: "Position failures, by trigger and error kind.",
		}, []string{"trigger", "kind"}),
		tracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearby_tracking_active",
			Help: "1 while the tracker reports isTracking.",
		}),
		lastFix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearby_last_fix_timestamp_seconds",
			Help: "Unix time of the last applied reading.",
		}),
		permission: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nearby_location_permission",
			Help: "1 for the current permission state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.fixes, m.failures, m.tracking, m.lastFix, m.permission)
	return m
}

func (m *TrackerMetrics) ObserveFix(trigger tracking.Trigger) {
	m.fixes.WithLabelValues(string(trigger)).Inc()
}

func (m *TrackerMetrics) ObserveFailure(trigger tracking.Trigger, kind tracking.ErrorKind) {
	m.failures.WithLabelValues(string(trigger), string(kind)).Inc()
}

func (m *TrackerMetrics) ObserveState(s tracking.State) {
	if s.IsTracking {
		m.tracking.Set(1)
	} else {
		m.tracking.Set(0)
	}
	if s.LastUpdated > 0 {
		m.lastFix.Set(float64(s.LastUpdated) / 1000)
	}
	for _, st := range []tracking.PermissionState{tracking.PermissionGranted, tracking.PermissionDenied, tracking.PermissionPrompt} {
		v := 0.0
		if s.PermissionStatus == st {
			v = 1
		}
		m.permission.WithLabelValues(string(st)).Set(v)
	}
}
