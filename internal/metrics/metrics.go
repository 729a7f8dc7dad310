// Package metrics exposes Prometheus instrumentation for the HTTP surface and
// order intake.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders persisted, by submission source.",
		},
		[]string{"source"},
	)

	distributorsProvisionedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "distributors_provisioned_total",
		Help: "Distributor accounts created by public order submissions.",
	})

	registerOnce sync.Once
)

// Register adds the collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			ordersCreatedTotal, distributorsProvisionedTotal)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight requests per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Fiber recycles the request buffers behind c.Method(); labels are retained.
		method := utils.CopyString(c.Method())
		route := utils.CopyString(c.Route().Path) // template path keeps label cardinality bounded
		labels := []string{method, route, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
		return err
	}
}

// OrderCreated counts a persisted order.
func OrderCreated(source string) {
	ordersCreatedTotal.WithLabelValues(source).Inc()
}

// DistributorProvisioned counts an account created on the fly.
func DistributorProvisioned() {
	distributorsProvisionedTotal.Inc()
}
