// Package metrics owns the Prometheus registry for the terrabuild binary:
// runtime collectors, the build-info gauge and the /metrics handler. The
// tile-pipeline instruments live in internal/core/observability and attach
// through Registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo labels the terrabuild_build_info gauge.
type BuildInfo struct {
	Version  string
	Revision string
	Built    string
}

type Provider struct {
	reg *prometheus.Registry
}

// NewProvider builds the process registry: Go and process collectors plus a
// terrabuild_build_info gauge pinned to 1 under the build labels.
func NewProvider(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if build.Version == "" {
		build.Version = "dev"
	}
	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "terrabuild_build_info",
			Help: "Build information for the terrabuild binary (value is always 1).",
		},
		[]string{"version", "revision", "built"},
	)
	reg.MustRegister(info)
	info.WithLabelValues(build.Version, build.Revision, build.Built).Set(1)

	return &Provider{reg: reg}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Registerer is where the observability instruments register themselves.
func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
