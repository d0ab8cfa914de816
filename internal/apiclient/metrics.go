package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the client-side counters of the API client.
type Metrics struct {
	Requests   *prometheus.CounterVec
	Recoveries *prometheus.CounterVec
	Pending    prometheus.Gauge
}

// NewMetrics registers the client metrics with reg. A nil reg gets a private
// registry so several clients can coexist.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API calls by method and outcome.",
		}, []string{"method", "outcome"}),
		Recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "client",
			Name:      "recoveries_total",
			Help:      "Re-authentication attempts by result.",
		}, []string{"result"}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "payroll",
			Subsystem: "client",
			Name:      "queue_pending",
			Help:      "Calls held while re-authenticating.",
		}),
	}
}

func outcomeFor(status int) string {
	switch {
	case status == 0:
		return "unreachable"
	case status < 300:
		return "ok"
	case status == 401:
		return "unauthorized"
	case status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}
