package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_http_requests_total",
			Help: "HTTP requests served, by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "protected_docs_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_request_transitions_total",
			Help: "Access request status transitions, by transition and result",
		},
		[]string{"transition", "result"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_downloads_total",
			Help: "Download attempts, by result",
		},
		[]string{"result"},
	)

	migrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_file_migrations_total",
			Help: "Per-file migration outcomes",
		},
		[]string{"result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_notifications_total",
			Help: "Notification publishes, by kind and result",
		},
		[]string{"kind", "result"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protected_docs_notification_deliveries_total",
			Help: "Queued notifications handled by the worker, by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveTransition records a lifecycle transition such as "pending->accepted".
func ObserveTransition(transition string, err error) {
	transitionsTotal.WithLabelValues(transition, result(err)).Inc()
}

// ObserveDownload records a download outcome such as served, denied or rate_limited.
func ObserveDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMigration records a single file's migration outcome.
func ObserveMigration(outcome string) {
	migrationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification records a notification publish.
func ObserveNotification(kind string, err error) {
	notificationsTotal.WithLabelValues(kind, result(err)).Inc()
}

// Middleware records request counts and latency labelled by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveDelivery records a worker outcome: delivered, failed or dropped.
func ObserveDelivery(outcome string) {
	deliveriesTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
