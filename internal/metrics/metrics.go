// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthDecisions counts role-gate outcomes by required role and decision.
	AuthDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_decisions_total",
			Help: "Role authorization decisions",
		},
		[]string{"role", "decision"},
	)

	// Checkouts counts checkout attempts by outcome.
	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PasswordResets counts reset requests and redemptions by outcome.
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_password_resets_total",
			Help: "Password reset requests and redemptions",
		},
		[]string{"stage", "outcome"},
	)

	// MailDeliveries counts outbound mail attempts by outcome.
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_mail_deliveries_total",
			Help: "Outbound mail delivery attempts",
		},
		[]string{"outcome"},
	)
)

// HTTPMiddleware records request count and latency per route template.
func HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
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
		path := "unknown"
		if route := c.Route(); route != nil && route.Path != "" {
			path = route.Path
		}
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
