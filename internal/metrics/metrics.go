// Package metrics holds the Prometheus collectors for HTTP traffic and grievance processing.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// TriageDegraded counts classification calls that fell back to a local default.
	TriageDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grievance_triage_degraded_total",
			Help: "Classification operations answered by a fallback instead of the model",
		},
		[]string{"operation"},
	)

	// Notifications counts outbound citizen notifications by channel and outcome.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grievance_notifications_total",
			Help: "Outbound citizen notifications",
		},
		[]string{"channel", "outcome"},
	)

	// Submissions counts persisted grievances by source transport.
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grievances_submitted_total",
			Help: "Grievances persisted, by source",
		},
		[]string{"source"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			TriageDegraded,
			Notifications,
			Submissions,
		)
	})
}

// Middleware records request count and latency labelled by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		RequestCounter.WithLabelValues(method, path, status).Inc()
		RequestDurationHistogram.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
