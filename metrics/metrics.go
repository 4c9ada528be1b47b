package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storegate/utils"
)

// endpointLabelLimit bounds the endpoint label so an attacker probing random
// paths cannot blow up series cardinality with arbitrarily long strings.
const endpointLabelLimit = 50

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stubshop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stubshop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Catalog metrics
	productsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stubshop_products_total",
			Help: "Total number of active products in the catalog",
		},
	)

	productsByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stubshop_products_by_category",
			Help: "Number of active products per category",
		},
		[]string{"category"},
	)

	productsLowStock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stubshop_products_low_stock",
			Help: "Number of active products with stock below the low-stock threshold",
		},
	)

	// Account metrics
	usersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stubshop_users_total",
			Help: "Number of registered user accounts",
		},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stubshop_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // success, failure
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		path = utils.TruncateLabel(path, endpointLabelLimit)
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// UpdateCatalog refreshes the catalog gauges from a store snapshot. byCategory
// replaces the whole vector so categories emptied by soft deletes drop to zero
// instead of going stale.
func UpdateCatalog(total int, byCategory map[string]int, lowStock int) {
	productsTotal.Set(float64(total))
	productsByCategory.Reset()
	for category, count := range byCategory {
		productsByCategory.WithLabelValues(category).Set(float64(count))
	}
	productsLowStock.Set(float64(lowStock))
}

// UpdateUsers updates the registered accounts gauge
func UpdateUsers(count int) {
	usersTotal.Set(float64(count))
}

// IncrementAuthAttempt increments the login attempt counter
func IncrementAuthAttempt(outcome string) {
	authAttemptsTotal.WithLabelValues(outcome).Inc()
}
