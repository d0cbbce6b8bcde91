package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry entity metrics
	ServicesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codeops_services_total",
			Help: "Registered services by team and lifecycle status",
		},
		[]string{"team", "status"},
	)

	DependenciesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codeops_dependencies_total",
			Help: "Dependency edges by team",
		},
		[]string{"team"},
	)

	PortAllocationsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codeops_port_allocations_total",
			Help: "Port allocations by team and environment",
		},
		[]string{"team", "environment"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeops_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeops_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Health probe metrics
	HealthProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeops_health_probes_total",
			Help: "Outbound health probes by resulting status",
		},
		[]string{"status"},
	)

	HealthProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeops_health_probe_duration_seconds",
			Help:    "Health probe round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Config generation metrics
	TemplatesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeops_templates_generated_total",
			Help: "Config templates generated by artifact type",
		},
		[]string{"type"},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeops_events_published_total",
			Help: "Registry change events published by type",
		},
		[]string{"type"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ServicesTotal)
	prometheus.MustRegister(DependenciesTotal)
	prometheus.MustRegister(PortAllocationsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(HealthProbesTotal)
	prometheus.MustRegister(HealthProbeDuration)
	prometheus.MustRegister(TemplatesGenerated)
	prometheus.MustRegister(EventsPublished)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
