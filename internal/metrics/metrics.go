// Package metrics provides Prometheus instrumentation for the signal engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilingsIngested counts ingested trade events by transaction type.
	FilingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insider_filings_ingested_total",
		Help: "Total trade events ingested",
	}, []string{"type"})

	// ScreenerRequests counts screener runs by sort key.
	ScreenerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insider_screener_requests_total",
		Help: "Total screener invocations",
	}, []string{"sort_by"})

	// ScreenerLatency tracks end-to-end screener computation time.
	ScreenerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insider_screener_latency_seconds",
		Help:    "Screener computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ScreenerResults tracks result-set sizes after filtering.
	ScreenerResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insider_screener_results",
		Help:    "Number of tickers returned per screener run",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
	})

	// ClusterAlerts counts cluster-buy alerts broadcast on ingestion.
	ClusterAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insider_cluster_alerts_total",
		Help: "Cluster-buy alerts broadcast to feed subscribers",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insider_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insider_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insider_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
