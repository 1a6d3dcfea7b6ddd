package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the classroom collectors on a private registry,
// several servers in one process never collide on registration.
type Metrics struct {
	registry       *prometheus.Registry
	MessagesSent   *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	Executions     *prometheus.CounterVec
	ActiveSessions *prometheus.GaugeVec
	Notifications  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_messages_sent_total",
			Help: "Chat messages accepted by a channel.",
		}, []string{"kind"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_send_failures_total",
			Help: "Chat messages rejected by a channel.",
		}, []string{"reason"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_mock_executions_total",
			Help: "Mock code executions completed.",
		}, []string{"language"}),
		ActiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "classroom_active_sessions",
			Help: "Open dashboard sessions.",
		}, []string{"role"}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classroom_notifications_total",
			Help: "Simulated facilitator notifications raised.",
		}),
	}
	m.registry.MustRegister(m.MessagesSent, m.SendFailures, m.Executions, m.ActiveSessions, m.Notifications)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
