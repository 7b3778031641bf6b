package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Verification attempts by result
	VerificationAttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_verification_attempts_total",
			Help: "Total number of verification code submissions by result",
		},
		[]string{"result"}, // result can be "verified", "wrong_code", "locked"
	)

	// Verification codes issued
	CodeIssuedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_verification_codes_issued_total",
			Help: "Total number of verification codes issued",
		},
		[]string{"reason"}, // reason can be "create", "resend", "lockout", "rotation"
	)

	// SMS dispatch outcomes
	SMSDispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_sms_dispatch_total",
			Help: "Total number of SMS dispatch attempts by status",
		},
		[]string{"status"}, // status can be "sent", "failed", "skipped"
	)

	// Password reset flow operations
	PasswordResetCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_password_reset_total",
			Help: "Total number of password reset operations",
		},
		[]string{"operation"}, // operation can be "forgot", "verify", "update"
	)

	// Contact matching lookups
	ContactLookupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flips_contact_lookups_total",
			Help: "Total number of contact matching requests",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flips_errors_total",
			Help: "Total number of request errors by type",
		},
		[]string{"type"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flips_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flips_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Contact batch size per request
	ContactBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flips_contact_batch_size",
			Help:    "Number of identifiers submitted per contact matching request",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flips_info",
			Help: "Information about the flips backend",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(VerificationAttemptCounter)
	prometheus.MustRegister(CodeIssuedCounter)
	prometheus.MustRegister(SMSDispatchCounter)
	prometheus.MustRegister(PasswordResetCounter)
	prometheus.MustRegister(ContactLookupCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(ErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(ContactBatchSize)

	// Register gauges
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordError increments the error counter for the given type
func RecordError(errorType string) {
	ErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
