package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-authserver-security/auth"
	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "authserver"

// Metrics counts requests, authentication outcomes and token lifecycle events. It is
// both an authn.EventPublisher and an auth.EventSink.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authnTotal      *prometheus.CounterVec
	tokenEvents     *prometheus.CounterVec
}

var (
	_ authn.EventPublisher = (*Metrics)(nil)
	_ auth.EventSink       = (*Metrics)(nil)
)

// NewMetrics registers the collectors on registry. A nil registry gets a fresh one, so
// several servers can live in one process.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Requests served, by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authnTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "authentications_total",
			Help:      "Authentication attempts by result",
		}, []string{"result"}),
		tokenEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_events_total",
			Help:      "Token lifecycle events by type and grant",
		}, []string{"event", "grant_type"}),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.authnTotal, m.tokenEvents} {
		if err := registerCollector(registry, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func registerCollector(registry prometheus.Registerer, collector prometheus.Collector) error {
	if err := registry.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PublishSuccess(_ context.Context, _ *authn.Authentication) {
	m.authnTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) PublishFailure(_ context.Context, _ *authn.Authentication, _ error) {
	m.authnTotal.WithLabelValues("failure").Inc()
}

func (m *Metrics) Publish(_ context.Context, e auth.Event) {
	m.tokenEvents.WithLabelValues(string(e.Type), string(e.GrantType)).Inc()
}

// Instrument records the status and latency of every request served under route.
func (m *Metrics) Instrument(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next(rec, r)
			m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	}
}
