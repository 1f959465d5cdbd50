// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version  string
	Revision string
}

// Provider owns the service's metric registry and collectors.
type Provider struct {
	reg *prometheus.Registry

	tileRequests *prometheus.CounterVec
	tileDuration prometheus.Histogram
	tileBytes    prometheus.Histogram
}

// New creates a Provider with its own registry, Go runtime collectors, and
// the tile-serving collectors.
func New(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postserve_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision"},
	)
	reg.MustRegister(buildInfo)
	if build.Version == "" {
		build.Version = "dev"
	}
	buildInfo.WithLabelValues(build.Version, build.Revision).Set(1)

	p := &Provider{
		reg: reg,
		tileRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postserve_tile_requests_total",
				Help: "Tile requests served, labelled by HTTP status code.",
			},
			[]string{"status"},
		),
		tileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postserve_tile_fetch_duration_seconds",
				Help:    "Wall time of the tile database fetch.",
				Buckets: prometheus.DefBuckets,
			},
		),
		tileBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postserve_tile_bytes",
				Help:    "Size of returned tile payloads in bytes.",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10),
			},
		),
	}
	reg.MustRegister(p.tileRequests, p.tileDuration, p.tileBytes)

	return p
}

// Handler returns the /metrics scrape handler for this registry.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// ObserveTile records one completed tile request.
func (p *Provider) ObserveTile(status int, fetchDuration time.Duration, payloadBytes int) {
	p.tileRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	p.tileDuration.Observe(fetchDuration.Seconds())
	if status < 500 {
		p.tileBytes.Observe(float64(payloadBytes))
	}
}
