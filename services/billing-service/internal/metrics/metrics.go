package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	accountRequests *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		accountRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "billing_account_requests_total",
			Help: "CreateBillingAccount calls by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) AccountRequest(result string) {
	m.accountRequests.WithLabelValues(result).Inc()
}
