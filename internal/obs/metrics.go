package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by module, intent and outcome.",
		},
		[]string{"module", "intent", "outcome"},
	)

	rateLimitDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_denials_total",
		Help: "Requests denied by the per-principal rate limiter.",
	})

	ownershipViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownership_violations_total",
		Help: "Record fetches denied because the record belongs to another project.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisionsTotal, rateLimitDenialsTotal, ownershipViolationsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDecision counts one authorization decision.
func ObserveDecision(module, intent string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	authzDecisionsTotal.WithLabelValues(module, intent, outcome).Inc()
}

// ObserveRateLimitDenial counts one 429.
func ObserveRateLimitDenial() {
	rateLimitDenialsTotal.Inc()
}

// ObserveOwnershipViolation counts one cross-project fetch denial.
func ObserveOwnershipViolation() {
	ownershipViolationsTotal.Inc()
}

// resourceRoutes are the /v1 collections that take an id path segment.
var resourceRoutes = map[string]struct{}{
	"projects":      {},
	"tasks":         {},
	"schedule":      {},
	"budget":        {},
	"procurement":   {},
	"contacts":      {},
	"proposals":     {},
	"change-orders": {},
}

// CanonicalPath collapses resource ids so metric label cardinality stays
// bounded. Unrecognized paths pass through untouched.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	parts := strings.Split(p, "/")
	// ["", "v1", resource, id]
	if len(parts) == 4 && parts[1] == "v1" && parts[3] != "" {
		if _, ok := resourceRoutes[parts[2]]; ok {
			parts[3] = ":id"
			return strings.Join(parts, "/")
		}
	}
	return p
}

// Instrument wraps a handler to record RPS, latency and in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
