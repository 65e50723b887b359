package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	offersProcessed prometheus.Counter
	runDuration     prometheus.Histogram
}

// NewMetrics initialises the registry with the HTTP and pipeline metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpulse_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketpulse_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpulse_recalc_runs_total",
		Help: "Recalculation runs by outcome.",
	}, []string{"outcome"})
	offers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketpulse_offers_processed_total",
		Help: "Offers processed across all recalculation runs.",
	})
	runDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketpulse_recalc_run_duration_seconds",
		Help:    "Duration of full recalculation runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
	registry.MustRegister(requests, duration, runs, offers, runDur)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		runsTotal:       runs,
		offersProcessed: offers,
		runDuration:     runDur,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and duration for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRun records the outcome and duration of one recalculation run.
func (m *Metrics) ObserveRun(outcome string, offers int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.offersProcessed.Add(float64(offers))
	m.runDuration.Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
