package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"techtrack/internal/event"
)

type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	logins   *prometheus.CounterVec
	users    *prometheus.CounterVec
}

// New registers the service collectors on a private registry so tests can
// build as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "techtrack",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "techtrack",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "techtrack",
			Name:      "auth_logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		users: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "techtrack",
			Name:      "user_changes_total",
			Help:      "User directory writes by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.logins,
		m.users,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Start counts auth and user events from the bus until ctx is done.
func (m *Metrics) Start(ctx context.Context, bus event.Bus) <-chan struct{} {
	done := make(chan struct{})
	events, unsubscribe := bus.Subscribe()

	go func() {
		defer close(done)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				m.observeEvent(e)
			}
		}
	}()

	return done
}

func (m *Metrics) observeEvent(e event.Event) {
	switch e.Type {
	case event.TypeLoginSucceeded:
		m.logins.WithLabelValues("success").Inc()
	case event.TypeLoginFailed:
		outcome := "invalid_credentials"
		if e.Reason == "inactive user" {
			outcome = "inactive_user"
		}
		m.logins.WithLabelValues(outcome).Inc()
	case event.TypeUserCreated:
		m.users.WithLabelValues("created").Inc()
	case event.TypeUserUpdated:
		m.users.WithLabelValues("updated").Inc()
	case event.TypeUserDeleted:
		m.users.WithLabelValues("deleted").Inc()
	}
}
