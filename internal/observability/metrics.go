package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports. All methods are safe on
// a nil receiver so components can be built without metrics.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	poolRefresh *prometheus.CounterVec
	poolSize    *prometheus.GaugeVec
	poolLastOK  *prometheus.GaugeVec

	cacheRequests *prometheus.CounterVec

	retrievalLatency  *prometheus.HistogramVec
	retrievalRejected prometheus.Counter
	recommendSource   *prometheus.CounterVec

	snapshots       *prometheus.CounterVec
	captureDuration prometheus.Histogram

	breakerState *prometheus.GaugeVec
	moodRequests *prometheus.CounterVec
	taskRuns     *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		poolRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_pool_refresh_total",
			Help: "Per-emotion pool refresh attempts by outcome.",
		}, []string{"emotion", "outcome"}),
		poolSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recommend_pool_size",
			Help: "Tracks stored by the last successful refresh of each emotion pool.",
		}, []string{"emotion"}),
		poolLastOK: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recommend_pool_last_success_timestamp",
			Help: "Unix time of the last successful refresh of each emotion pool.",
		}, []string{"emotion"}),
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache reads by namespace and result (hit, miss, error).",
		}, []string{"namespace", "result"}),
		retrievalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "track_retrieval_duration_seconds",
			Help:    "Latency of feature-range track searches.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"outcome"}),
		retrievalRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "track_retrieval_rejected_hits_total",
			Help: "Search hits dropped for failing the requested profile or popularity floor.",
		}),
		recommendSource: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Recommendations served by source (pool, direct, failed).",
		}, []string{"source"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_snapshots_total",
			Help: "Trend captures by final status.",
		}, []string{"status"}),
		captureDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_capture_duration_seconds",
			Help:    "Duration of trend captures.",
			Buckets: []float64{.05, .1, .5, 1, 2, 5, 10, 30},
		}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
		moodRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_llm_requests_total",
			Help: "Mood text analysis calls by outcome.",
		}, []string{"outcome"}),
		taskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduled_task_runs_total",
			Help: "Scheduled task runs by task and outcome.",
		}, []string{"task", "outcome"}),
	}
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObservePoolRefresh(emotion string, size int, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.poolRefresh.WithLabelValues(emotion, "error").Inc()
	case size == 0:
		m.poolRefresh.WithLabelValues(emotion, "empty").Inc()
	default:
		m.poolRefresh.WithLabelValues(emotion, "ok").Inc()
		m.poolSize.WithLabelValues(emotion).Set(float64(size))
		m.poolLastOK.WithLabelValues(emotion).SetToCurrentTime()
	}
}

func (m *Metrics) IncCache(namespace, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(namespace, result).Inc()
}

func (m *Metrics) ObserveRetrieval(dur time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.retrievalLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) AddRetrievalRejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retrievalRejected.Add(float64(n))
}

func (m *Metrics) IncRecommendSource(source string) {
	if m == nil {
		return
	}
	m.recommendSource.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSnapshot(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(status).Inc()
	m.captureDuration.Observe(dur.Seconds())
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) IncMoodRequest(outcome string) {
	if m == nil {
		return
	}
	m.moodRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTaskRun(task, outcome string) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, outcome).Inc()
}
