package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the bridge collectors. Each Server owns its registry.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.HistogramVec
	jobs     *prometheus.CounterVec
	dropped  prometheus.Counter
}

func newMetrics(s *Server) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mbrelay_http_request_duration_seconds",
			Help:    "Bridge API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbrelay_jobs_total",
			Help: "Events and commands processed by workers.",
		}, []string{"kind", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbrelay_jobs_dropped_total",
			Help: "Jobs rejected because the queue was full.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.jobs,
		m.dropped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mbrelay_queue_length",
			Help: "Jobs waiting for a worker.",
		}, func() float64 { return float64(len(s.queue)) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mbrelay_roster_players",
			Help: "Players currently tracked from bot reports.",
		}, func() float64 { return float64(s.roster.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mbrelay_plugin_enabled",
			Help: "1 while the plugin talks to Metabans.",
		}, func() float64 {
			if s.relay.Enabled() {
				return 1
			}
			return 0
		}),
		collectors.NewGoCollector(),
	)

	return m
}

func (m *metrics) observeRequest(method string, code int, seconds float64) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Observe(seconds)
}

func (m *metrics) observeJob(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobs.WithLabelValues(kind, result).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
