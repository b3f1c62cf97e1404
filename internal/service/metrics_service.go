package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// MetricsService owns a private Prometheus registry exposing HTTP metrics
// plus domain counters for routing, approvals, the ready queue and the
// attendance sweeps.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ticketsRouted     *prometheus.CounterVec
	approvalsResolved *prometheus.CounterVec
	queueJoins        prometheus.Counter
	queueCleared      prometheus.Counter
	autoCheckouts     *prometheus.CounterVec
}

// NewMetricsService constructs the service and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ticketsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickets_routed_total",
			Help: "Closed tickets by routed approval level and solo control.",
		}, []string{"level", "solo_control"}),
		approvalsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_resolved_total",
			Help: "Approval workflow resolutions by final status.",
		}, []string{"status"}),
		queueJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_joins_total",
			Help: "Technician ready-queue joins.",
		}),
		queueCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_entries_cleared_total",
			Help: "Queue entries removed by store-wide clears.",
		}),
		autoCheckouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auto_checkouts_total",
			Help: "Automatic attendance checkouts by trigger.",
		}, []string{"trigger"}),
	}

	registry.MustRegister(
		s.httpRequests,
		s.httpDuration,
		s.ticketsRouted,
		s.approvalsResolved,
		s.queueJoins,
		s.queueCleared,
		s.autoCheckouts,
	)
	return s
}

// Registry exposes the underlying registry.
func (s *MetricsService) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the HTTP handler serving the registry in Prometheus
// exposition format.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled HTTP request.
func (s *MetricsService) ObserveHTTP(method, path string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TicketRouted records one routed ticket close.
func (s *MetricsService) TicketRouted(level models.ApprovalLevel, soloControl bool) {
	s.ticketsRouted.WithLabelValues(string(level), strconv.FormatBool(soloControl)).Inc()
}

// ApprovalResolved records one approval workflow resolution.
func (s *MetricsService) ApprovalResolved(status models.ApprovalStatus) {
	s.approvalsResolved.WithLabelValues(string(status)).Inc()
}

// QueueJoined records one ready-queue join.
func (s *MetricsService) QueueJoined() {
	s.queueJoins.Inc()
}

// QueueCleared records entries removed by a store-wide clear.
func (s *MetricsService) QueueCleared(removed int) {
	s.queueCleared.Add(float64(removed))
}

// AutoCheckout records one automatic checkout.
func (s *MetricsService) AutoCheckout(trigger string) {
	s.autoCheckouts.WithLabelValues(trigger).Inc()
}
