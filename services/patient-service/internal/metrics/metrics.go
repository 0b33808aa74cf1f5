// Package metrics exposes the patient service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registrations      *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	sideEffectDuration *prometheus.HistogramVec
	billingIntents     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_registrations_total",
			Help: "Patient registration attempts by outcome.",
		}, []string{"outcome"}),
		sideEffectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_side_effect_failures_total",
			Help: "Billing or publish failures after a committed registration.",
		}, []string{"step"}),
		sideEffectDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patient_side_effect_duration_seconds",
			Help:    "Duration of post-registration side effects.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"step"}),
		billingIntents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_billing_intents_total",
			Help: "Processed billing intents by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) RegistrationOutcome(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SideEffectFailed(step string) {
	m.sideEffectFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) SideEffectDuration(step string, d time.Duration) {
	m.sideEffectDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) IntentProcessed(result string) {
	m.billingIntents.WithLabelValues(result).Inc()
}
