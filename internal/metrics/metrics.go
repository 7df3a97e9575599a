// Package metrics holds the Prometheus collectors of the attendance API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the attendance collectors.
type Metrics struct {
	CheckIns   *prometheus.CounterVec
	CheckOuts  prometheus.Counter
	Rejections *prometheus.CounterVec
	Distance   prometheus.Histogram
}

// New creates the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_checkins_total",
			Help: "Successful check-ins by assigned status.",
		}, []string{"status"}),
		CheckOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_checkouts_total",
			Help: "Successful check-outs.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_rejections_total",
			Help: "Failed attendance operations by operation and failure kind.",
		}, []string{"operation", "kind"}),
		Distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_checkin_distance_meters",
			Help:    "Distance from school at accepted check-ins while geofencing is enabled.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CheckIns, m.CheckOuts, m.Rejections, m.Distance)
	}
	return m
}

// CheckIn records an accepted check-in. distance is nil when geofencing is off.
func (m *Metrics) CheckIn(status string, distance *int) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(status).Inc()
	if distance != nil {
		m.Distance.Observe(float64(*distance))
	}
}

// CheckOut records an accepted check-out.
func (m *Metrics) CheckOut() {
	if m == nil {
		return
	}
	m.CheckOuts.Inc()
}

// Reject records a failed operation.
func (m *Metrics) Reject(operation, kind string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, kind).Inc()
}
