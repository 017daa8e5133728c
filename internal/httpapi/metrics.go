package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "img2imgd"

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"path", "method", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency. /events and /ws streams are excluded.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	}, []string{"path", "method"})

	httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "inflight_requests",
		Help: "In-flight HTTP requests by route.",
	}, []string{"path"})

	// refusedTotal counts requests the pipeline turned away: dropped
	// triggers by the state they met, and output reads during a run.
	refusedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "refused_total",
		Help: "Requests refused because the pipeline was busy or not loaded.",
	}, []string{"reason"})

	outputBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "output_bytes_total",
		Help: "PNG bytes served from /output.png.",
	})

	eventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "event_subscribers",
		Help: "Open /events and /ws subscriptions.",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, refusedTotal, outputBytesTotal, eventSubscribers)
}

// statusRecorder captures the response status for the metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush passes through so /events can stream through the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so /ws can upgrade through the middleware.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// MetricsMiddleware records request counts, latency and in-flight requests
// labelled by chi route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		// The pattern is only known once chi has routed; count in-flight by
		// raw path and relabel on completion.
		httpInflight.WithLabelValues(r.URL.Path).Inc()
		next.ServeHTTP(sr, r)
		httpInflight.WithLabelValues(r.URL.Path).Dec()

		path := routePatternOrPath(r)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(sr.status)).Inc()
		if path != "/events" && path != "/ws" {
			httpRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// routePatternOrPath keeps label cardinality bounded by preferring the chi
// route pattern.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementRefused counts one refused request. An empty reason is recorded
// as "unspecified".
func IncrementRefused(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	refusedTotal.WithLabelValues(reason).Inc()
}
