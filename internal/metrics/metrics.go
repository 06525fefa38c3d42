package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	accepted    prometheus.Counter
	published   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fieldops",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "status_transitions_total",
			Help:      "Applied status transitions by entity and event.",
		}, []string{"entity", "event"}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "wallet_accepted_amount_total",
			Help:      "Money accepted by admin from field actors.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "outbox_published_total",
			Help:      "Outbox events by topic and result.",
		}, []string{"topic", "result"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.transitions, m.accepted, m.published)
	return m
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) Transition(entity, event string) {
	m.transitions.WithLabelValues(entity, event).Inc()
}

func (m *Metrics) Accepted(amount decimal.Decimal) {
	m.accepted.Add(amount.InexactFloat64())
}

func (m *Metrics) Published(topic string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
