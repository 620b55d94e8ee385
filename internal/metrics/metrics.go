// Package metrics provides Prometheus instrumentation for the fraudwatch service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransactionsScoredTotal counts evaluated transactions by final status.
	TransactionsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Name:      "transactions_scored_total",
			Help:      "Total transactions evaluated by final status.",
		},
		[]string{"status"},
	)

	// RiskFactorTriggersTotal counts individual rule firings by factor tag.
	RiskFactorTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Name:      "risk_factor_triggers_total",
			Help:      "Total risk rule firings by factor tag.",
		},
		[]string{"factor"},
	)

	// RiskScore observes the distribution of summed risk scores.
	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fraudwatch",
			Name:      "risk_score",
			Help:      "Distribution of summed risk scores (0-100).",
			Buckets:   []float64{0, 15, 30, 40, 55, 70, 85, 100},
		},
	)

	// ProfilesCreatedTotal counts lazily created user profiles.
	ProfilesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Name:      "profiles_created_total",
			Help:      "Total user profiles created on first evaluation.",
		},
	)

	// ActiveAlertStreams tracks connected alert stream clients.
	ActiveAlertStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fraudwatch",
			Name:      "active_alert_streams",
			Help:      "Number of connected WebSocket alert stream clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsScoredTotal,
		RiskFactorTriggersTotal,
		RiskScore,
		ProfilesCreatedTotal,
		ActiveAlertStreams,
	)
}

// Middleware records request counts and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveAssessment records the metrics for a single evaluated transaction.
func ObserveAssessment(status string, score int, factors []string) {
	TransactionsScoredTotal.WithLabelValues(status).Inc()
	RiskScore.Observe(float64(score))
	for _, f := range factors {
		RiskFactorTriggersTotal.WithLabelValues(f).Inc()
	}
}
