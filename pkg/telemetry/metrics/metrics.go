// Package metrics owns the Prometheus registry and the /metrics HTTP
// handler. Domain packages register their own metric families on the
// injected registry (see admission.NewMetrics); this package provides
// the shared plumbing around them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the registry all metric families are registered on.
type Collector struct {
	registry  *prometheus.Registry
	buildInfo *prometheus.GaugeVec
}

// NewCollector creates a collector around the given registry. A nil
// registry gets a fresh one, which keeps tests isolated from each other.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "turnstile",
			Name:      "build_info",
			Help:      "Build information, value is always 1",
		},
		[]string{"version"},
	)
	registry.MustRegister(buildInfo)

	return &Collector{
		registry:  registry,
		buildInfo: buildInfo,
	}
}

// SetBuildInfo publishes the running version as a constant gauge.
func (c *Collector) SetBuildInfo(version string) {
	c.buildInfo.WithLabelValues(version).Set(1)
}

// Registry returns the registry for domain packages to register on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
//
// The handler exposes all registered metrics in the standard Prometheus
// exposition format and is mounted at the path from the metrics
// configuration (typically "/metrics").
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
