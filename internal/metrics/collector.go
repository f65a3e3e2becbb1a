package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "personasim"

// Collector records simulation metrics.
type Collector struct {
	registry *prometheus.Registry

	// LLM
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmRetriesTotal    *prometheus.CounterVec
	llmTokensUsed      *prometheus.CounterVec

	// Simulation
	sessionsTotal      *prometheus.CounterVec
	sessionTurns       *prometheus.HistogramVec
	goalGenerations    *prometheus.CounterVec
	batchesTotal       *prometheus.CounterVec
	sessionsInProgress prometheus.Gauge

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registered on a fresh private registry.
// An empty namespace uses DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of provider calls",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Total number of retried provider calls by error kind",
		},
		[]string{"provider", "model", "kind"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished conversation sessions",
		},
		[]string{"status", "error_kind"},
	)

	c.sessionTurns = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_turns",
			Help:      "Number of turns per finished session",
			Buckets:   prometheus.LinearBuckets(2, 2, 10),
		},
		[]string{"status"},
	)

	c.goalGenerations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_generations_total",
			Help:      "Total number of goal generation runs",
		},
		[]string{"status"},
	)

	c.batchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of finished batches",
		},
		[]string{"status"},
	)

	c.sessionsInProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_progress",
			Help:      "Number of conversation sessions currently running",
		},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordLLMRequest records one provider call. status is "success" or an error kind.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordLLMRetry records that a failed call of the given kind will be retried.
func (c *Collector) RecordLLMRetry(provider, model, kind string) {
	if c == nil {
		return
	}
	c.llmRetriesTotal.WithLabelValues(provider, model, kind).Inc()
}

// SessionStarted increments the in-progress gauge.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsInProgress.Inc()
}

// RecordSession records a finished session. errorKind is empty for completed sessions.
func (c *Collector) RecordSession(status, errorKind string, turns int) {
	if c == nil {
		return
	}
	c.sessionsInProgress.Dec()
	c.sessionsTotal.WithLabelValues(status, errorKind).Inc()
	c.sessionTurns.WithLabelValues(status).Observe(float64(turns))
}

// RecordGoalGeneration records a goal generation outcome ("success" or "failed").
func (c *Collector) RecordGoalGeneration(status string) {
	if c == nil {
		return
	}
	c.goalGenerations.WithLabelValues(status).Inc()
}

// RecordBatch records a finished batch ("completed", "failed" or "canceled").
func (c *Collector) RecordBatch(status string) {
	if c == nil {
		return
	}
	c.batchesTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return strconv.Itoa(code)
	}
}
