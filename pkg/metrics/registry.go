// Package metrics owns the process-wide Prometheus registry.
//
// Metrics are opt-in: nothing is registered until InitRegistry is called.
// Constructors in pkg/metrics/prometheus return nil when the registry was
// never initialized, and consumers treat a nil recorder as a no-op, so a
// deployment without metrics pays no overhead.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry with the standard Go runtime
// and process collectors. Safe to call multiple times.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Handler returns the HTTP handler exposing the registry in the
// Prometheus text format. Returns a 404 handler when metrics are
// disabled.
func Handler() http.Handler {
	if registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
