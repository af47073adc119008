package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ScenarioRuns counts scenario runs by type and outcome (saved, unsaved, invalid, data_error)
	ScenarioRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scenario_runs_total", Help: "Scenario runs by type and outcome."},
		[]string{"type", "outcome"},
	)
	// ScenarioSavings tracks projected annual savings per computed scenario
	ScenarioSavings = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "scenario_estimated_savings", Help: "Projected savings per scenario run.", Buckets: []float64{0, 85000, 170000, 425000, 850000, 1700000, 4250000}},
		[]string{"type"},
	)
	// Findings counts inefficiency findings emitted by evaluation passes
	Findings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "inefficiency_findings_total", Help: "Inefficiency findings by type and severity."},
		[]string{"type", "severity"},
	)
	// StoreFailures counts scenario writes that did not persist
	StoreFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scenario_store_failures_total", Help: "Scenario store write failures."},
	)
	// WebhookDeliveries counts webhook notifications by outcome (delivered, failed, dropped)
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ScenarioRuns)
		Registry.MustRegister(ScenarioSavings)
		Registry.MustRegister(Findings)
		Registry.MustRegister(StoreFailures)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
