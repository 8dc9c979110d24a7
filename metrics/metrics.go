// Package metrics exposes auth activity and HTTP traffic as prometheus series.
package metrics

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/safeedu/go-auth"
)

const namespace = "safeedu_auth"

// Metrics holds the collectors registered for the service
type Metrics struct {
	ActivityTotal *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

var _ auth.ActivitySink = (*Metrics)(nil)

// New creates the collectors and registers them with reg
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ActivityTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_events_total",
				Help:      "Total number of auth activity events by event type and role",
			},
			[]string{"event", "role"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.ActivityTotal)
	reg.MustRegister(m.RequestsTotal)

	return m
}

// Record implements auth.ActivitySink
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	role := string(event.Role)
	if role == "" {
		role = "none"
	}
	m.ActivityTotal.WithLabelValues(string(event.EventType), role).Inc()
	return nil
}

// Middleware counts every request once the handler chain returns
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}

		m.RequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		return err
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
