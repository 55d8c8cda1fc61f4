package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Backend (DynamoDB) call metrics
	backendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_duration_seconds",
			Help:    "Backend store call duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"table", "operation", "status"},
	)

	// Auth flow metrics
	authOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Total number of auth service operations",
		},
		[]string{"operation", "status"}, // login/register/logout/reset/update, success/failure
	)

	// Session/list refresh metrics
	listRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "list_refresh_total",
			Help: "Total number of post-mutation list refreshes",
		},
		[]string{"list"}, // users or records
	)

	// Rate limiting metrics
	rateLimitDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_dropped_total",
			Help: "Total number of requests dropped due to rate limiting",
		},
		[]string{"key_type"}, // user or ip
	)

	// Redis metrics
	redisOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)
)

// Init initializes the metrics
func Init() error {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		backendCallDuration,
		authOperationsTotal,
		listRefreshTotal,
		rateLimitDroppedTotal,
		redisOperationsTotal,
	)

	return nil
}

// HTTPMetricsMiddleware records HTTP metrics
func HTTPMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)

		return err
	}
}

// RecordBackendCall records metrics for backend store calls
func RecordBackendCall(table, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	backendCallDuration.WithLabelValues(table, operation, status).Observe(duration.Seconds())
}

// RecordAuthOperation records auth service outcomes
func RecordAuthOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	authOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordListRefresh records a post-mutation list reload
func RecordListRefresh(list string) {
	listRefreshTotal.WithLabelValues(list).Inc()
}

// RecordRateLimitDrop records rate limit drops
func RecordRateLimitDrop(keyType string) {
	rateLimitDroppedTotal.WithLabelValues(keyType).Inc()
}

// RecordRedisOperation records Redis operations
func RecordRedisOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	redisOperationsTotal.WithLabelValues(operation, status).Inc()
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() fiber.Handler {
	promHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		promHandler(c.Context())
		return nil
	}
}
