package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts requests by route, method, and status text.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes request latency by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// LLMRequestsTotal counts completion calls by model, endpoint tag, and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM requests",
		},
		[]string{"model", "endpoint", "status"},
	)
	// LLMRequestDuration observes completion call latency.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "endpoint"},
	)
	// LLMTokensTotal accumulates token usage by type (prompt, completion, total).
	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total token usage",
		},
		[]string{"model", "endpoint", "token_type"},
	)

	// AnalysesCompletedTotal counts surveys that reached the completed state.
	AnalysesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_analyses_completed_total",
			Help: "Total number of survey analyses completed",
		},
	)
	// AnalysesFailedTotal counts surveys that reached the failed state.
	AnalysesFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_analyses_failed_total",
			Help: "Total number of survey analyses failed",
		},
	)
	// AnalysesProcessing tracks pipeline runs currently in flight.
	AnalysesProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "survey_analyses_processing",
			Help: "Number of survey analyses currently processing",
		},
	)
)

// InitMetrics registers all Prometheus metrics once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(AnalysesCompletedTotal)
	prometheus.MustRegister(AnalysesFailedTotal)
	prometheus.MustRegister(AnalysesProcessing)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordLLMRequest records one completion attempt's outcome and latency.
func RecordLLMRequest(model, endpoint, status string, dur time.Duration) {
	LLMRequestsTotal.WithLabelValues(model, endpoint, status).Inc()
	LLMRequestDuration.WithLabelValues(model, endpoint).Observe(dur.Seconds())
}

// RecordLLMTokens accumulates token usage for one completion.
func RecordLLMTokens(model, endpoint string, prompt, completion, total int) {
	if prompt > 0 {
		LLMTokensTotal.WithLabelValues(model, endpoint, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		LLMTokensTotal.WithLabelValues(model, endpoint, "completion").Add(float64(completion))
	}
	if total > 0 {
		LLMTokensTotal.WithLabelValues(model, endpoint, "total").Add(float64(total))
	}
}
