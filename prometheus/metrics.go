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
	// Authorization decisions by resource, action and outcome
	AuthzDecisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_authz_decisions_total",
			Help: "Total number of authorization decisions by resource, action and outcome",
		},
		[]string{"resource", "action", "outcome"},
	)

	// Badge gate transitions by field and outcome
	BadgeTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_badge_transitions_total",
			Help: "Total number of badge transitions by field and outcome",
		},
		[]string{"field", "outcome"}, // outcome can be "applied", "noop", "rejected", "denied"
	)

	// Audit events by action
	AuditEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_audit_events_total",
			Help: "Total number of audit events emitted by action",
		},
		[]string{"action"},
	)

	// Disclosure lifecycle operations
	DisclosureOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_disclosure_operations_total",
			Help: "Total number of disclosure activations and deactivations",
		},
		[]string{"operation", "kind"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	PolicyErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_policy_errors_total",
			Help: "Total number of policy layer errors",
		},
		[]string{"type"}, // type can be "invalid_request", "audit_write_failed", "db_error" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trust_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trust_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trust_info",
			Help: "Information about the trust service",
		},
		[]string{"version"},
	)

	// Active disclosures by kind
	ActiveDisclosuresGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trust_active_disclosures",
			Help: "Number of currently active trust disclosures by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(AuthzDecisionCounter)
	prometheus.MustRegister(BadgeTransitionCounter)
	prometheus.MustRegister(AuditEventCounter)
	prometheus.MustRegister(DisclosureOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(PolicyErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(ActiveDisclosuresGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
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

// RecordAuthzDecision records an authorization decision
func RecordAuthzDecision(resource, action string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	AuthzDecisionCounter.With(prometheus.Labels{
		"resource": resource,
		"action":   action,
		"outcome":  outcome,
	}).Inc()
}

// RecordBadgeTransition records a badge gate transition outcome
func RecordBadgeTransition(field, outcome string) {
	BadgeTransitionCounter.With(prometheus.Labels{"field": field, "outcome": outcome}).Inc()
}

// RecordAuditEvent records an emitted audit event by action
func RecordAuditEvent(action string) {
	AuditEventCounter.With(prometheus.Labels{"action": action}).Inc()
}

// RecordDisclosureOperation records a disclosure lifecycle operation
func RecordDisclosureOperation(operation, kind string) {
	DisclosureOperationCounter.With(prometheus.Labels{"operation": operation, "kind": kind}).Inc()
}

// RecordPolicyError records a policy layer error by type
func RecordPolicyError(errorType string) {
	PolicyErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// UpdateActiveDisclosures updates the active disclosures gauge for a kind
func UpdateActiveDisclosures(kind string, count int) {
	ActiveDisclosuresGauge.With(prometheus.Labels{"kind": kind}).Set(float64(count))
}
