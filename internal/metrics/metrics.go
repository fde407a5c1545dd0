// Package metrics exposes panel counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts controller outcomes. It satisfies panel.Metrics.
type Collector struct {
	registry *prometheus.Registry

	posterFetches *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	panels        prometheus.Gauge
}

// New registers the panel counters and the Go runtime collectors on a fresh
// registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		posterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetpanel",
			Name:      "poster_fetches_total",
			Help:      "Poster page fetches by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetpanel",
			Name:      "uploads_total",
			Help:      "File uploads by outcome.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetpanel",
			Name:      "dispatched_messages_total",
			Help:      "Outbound chat messages by kind.",
		}, []string{"kind"}),
		panels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meetpanel",
			Name:      "panels_active",
			Help:      "Panel controllers currently alive.",
		}),
	}
	c.registry.MustRegister(
		c.posterFetches,
		c.uploads,
		c.dispatches,
		c.panels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) PosterFetch(outcome string) { c.posterFetches.WithLabelValues(outcome).Inc() }

func (c *Collector) Upload(outcome string) { c.uploads.WithLabelValues(outcome).Inc() }

func (c *Collector) Dispatch(kind string) { c.dispatches.WithLabelValues(kind).Inc() }

// PanelOpened and PanelClosed track live controllers.
func (c *Collector) PanelOpened() { c.panels.Inc() }

func (c *Collector) PanelClosed() { c.panels.Dec() }

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
