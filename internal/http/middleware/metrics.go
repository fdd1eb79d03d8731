package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Label cardinality stays bounded: path is the registered route (requests
// that matched none share "unmatched") and role is one of the three roles or
// "" for anonymous and unassigned callers.
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status", "role"},
	)

	// No status label on the histograms.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 5 << 10, 25 << 10, 100 << 10, 500 << 10,
				1 << 20, 5 << 20, // CSV exports
			},
		},
		[]string{"method", "path"},
	)

	// Repair submissions carry photos, so the upper buckets matter.
	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_size_bytes",
			Help: "Size of HTTP request bodies in bytes, when declared.",
			Buckets: []float64{
				256, 1 << 10, 4 << 10, 16 << 10, 64 << 10,
				256 << 10, 1 << 20, 2 << 20, 4 << 20, 8 << 20, 16 << 20,
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, httpReqSize)
}

// unmatchedPath labels requests that hit no registered route.
const unmatchedPath = "unmatched"

// MetricsOptions configures Metrics.
type MetricsOptions struct {
	// SkipPaths lists route paths (e.g. "/health", "/metrics") that are not
	// instrumented.
	SkipPaths []string
}

// Metrics instruments requests with Prometheus: counts by method, route,
// status and caller role, latency, in-flight requests, and request and
// response sizes. Serve the registry separately, e.g.
//
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics(opts MetricsOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		// The role is known only once RequireRole ran.
		httpReqs.WithLabelValues(method, path, status, RoleFrom(c)).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, path).Observe(float64(n))
		}
		// Bodiless or hijacked responses report -1.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
