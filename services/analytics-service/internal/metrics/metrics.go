// Package metrics exposes the analytics service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	events     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	malformed  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_patient_events_total",
			Help: "Patient events recorded by event type.",
		}, []string{"event_type"}),
		duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_patient_event_duplicates_total",
			Help: "Redelivered patient events ignored by the inbox.",
		}, []string{"event_type"}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Name: "analytics_patient_events_malformed_total",
			Help: "Patient events skipped because the payload could not be read.",
		}),
	}
}

func (m *Metrics) EventRecorded(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

func (m *Metrics) DuplicateSkipped(eventType string) {
	m.duplicates.WithLabelValues(eventType).Inc()
}

func (m *Metrics) MalformedSkipped() {
	m.malformed.Inc()
}
