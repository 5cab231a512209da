package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectionsTotal  prometheus.Gauge
	SessionsActive    prometheus.Gauge
	SessionsByContest *prometheus.GaugeVec
	MessagesReceived  prometheus.Counter
	MessagesSent      prometheus.Counter
	SubmissionsTotal  *prometheus.CounterVec
	ForcedExits       *prometheus.CounterVec
	SampleRunLatency  prometheus.Histogram
	KafkaMessages     *prometheus.CounterVec
	AuthFailures      prometheus.Counter
	RateLimited       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_total",
			Help: "Total number of active WebSocket connections",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "contest_sessions_active",
			Help: "Number of live contest sessions",
		}),
		SessionsByContest: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "contest_sessions_by_contest",
			Help: "Number of live sessions per contest",
		}, []string{"contest_id"}),
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_received_total",
			Help: "Total number of messages received from clients",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_sent_total",
			Help: "Total number of messages sent to clients",
		}),
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_submissions_total",
			Help: "Total number of submissions relayed to the judge",
		}, []string{"kind", "forced"}),
		ForcedExits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_forced_exits_total",
			Help: "Total number of sessions terminated by a forced exit",
		}, []string{"reason"}),
		SampleRunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "contest_sample_run_latency_seconds",
			Help:    "Latency of sample runs against the judge",
			Buckets: prometheus.DefBuckets,
		}),
		KafkaMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Total number of Kafka messages processed",
		}, []string{"topic", "status"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) IncConnections() {
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) DecConnections() {
	m.ConnectionsTotal.Dec()
}

func (m *Metrics) SessionStarted(contestID string) {
	m.SessionsActive.Inc()
	m.SessionsByContest.WithLabelValues(contestID).Inc()
}

func (m *Metrics) SessionEnded(contestID string) {
	m.SessionsActive.Dec()
	m.SessionsByContest.WithLabelValues(contestID).Dec()
}

func (m *Metrics) IncMessagesReceived() {
	m.MessagesReceived.Inc()
}

func (m *Metrics) IncMessagesSent() {
	m.MessagesSent.Inc()
}

func (m *Metrics) IncSubmission(kind string, forced bool) {
	label := "false"
	if forced {
		label = "true"
	}
	m.SubmissionsTotal.WithLabelValues(kind, label).Inc()
}

func (m *Metrics) IncForcedExit(reason string) {
	m.ForcedExits.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSampleRunLatency(seconds float64) {
	m.SampleRunLatency.Observe(seconds)
}

func (m *Metrics) IncKafkaMessage(topic, status string) {
	m.KafkaMessages.WithLabelValues(topic, status).Inc()
}

func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}

func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}
