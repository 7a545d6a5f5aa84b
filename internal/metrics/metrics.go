package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	StoreOpsTotal   *prometheus.CounterVec   // op, result=ok|error
	StoreOpLatency  *prometheus.HistogramVec // op
	DecisionsTotal  *prometheus.CounterVec   // queue, decision, reason
	TicketsTotal    *prometheus.CounterVec   // queue, state
	SigningErrors   *prometheus.CounterVec   // queue
	AutoPeriods     *prometheus.CounterVec   // queue
	ManualReleases  *prometheus.CounterVec   // queue, source=http|grpc|kafka
	ReleasedTotal   *prometheus.CounterVec   // queue
	PublishFailures *prometheus.CounterVec   // sink
}

// NewMetrics registers the gate's collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_store_ops_total",
				Help: "Queue state store operations by op and result",
			},
			[]string{"op", "result"},
		),
		StoreOpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_store_op_latency_ms",
				Help:    "Latency of queue state store operations (ms)",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 12), // 0.25ms .. ~512ms
			},
			[]string{"op"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_decisions_total",
				Help: "Gate decisions by queue, outcome and bypass reason",
			},
			[]string{"queue", "decision", "reason"},
		),
		TicketsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_ticket_states_total",
				Help: "Presented ticket classification by queue and state",
			},
			[]string{"queue", "state"},
		),
		SigningErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_ticket_signing_errors_total",
				Help: "Tickets that could not be minted",
			},
			[]string{"queue"},
		),
		AutoPeriods: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_auto_release_periods_total",
				Help: "Automatic release periods opened",
			},
			[]string{"queue"},
		),
		ManualReleases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_manual_releases_total",
				Help: "Administrative release commands applied",
			},
			[]string{"queue", "source"},
		),
		ReleasedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_released_visitors_total",
				Help: "Visitors released by advancing the cursor",
			},
			[]string{"queue"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_request_log_publish_failures_total",
				Help: "Request log entries a sink failed to accept",
			},
			[]string{"sink"},
		),
	}

	reg.MustRegister(
		m.StoreOpsTotal,
		m.StoreOpLatency,
		m.DecisionsTotal,
		m.TicketsTotal,
		m.SigningErrors,
		m.AutoPeriods,
		m.ManualReleases,
		m.ReleasedTotal,
		m.PublishFailures,
	)

	return m
}

func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOpsTotal.WithLabelValues(op, result).Inc()
	m.StoreOpLatency.WithLabelValues(op).Observe(float64(d) / float64(time.Millisecond))
}
