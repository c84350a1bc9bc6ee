// Package metrics provides Prometheus metrics for Cosmos DB access.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry manages Prometheus metrics registration and exposure.
// It carries the Cosmos DB operation metrics and the Go runtime collectors.
type Registry struct {
	registry *prometheus.Registry
	cosmos   *CosmosMetrics
}

// NewRegistry creates a registry with Cosmos DB, Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	cosmos := NewCosmosMetrics()

	reg.MustRegister(cosmos.Collectors()...)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry: reg,
		cosmos:   cosmos,
	}
}

// Cosmos returns the Cosmos DB operation metrics of this registry.
func (r *Registry) Cosmos() *CosmosMetrics {
	return r.cosmos
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

func (r *Registry) Unregister(collector prometheus.Collector) bool {
	return r.registry.Unregister(collector)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.Handle("/metrics", registry.Handler())
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
