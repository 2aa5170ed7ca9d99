// Package metrics exposes widget outcomes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lepinkainen/feed-widget/pkg/widget"
)

const namespace = "feed_widget"

// Collector records widget outcomes. It implements widget.Observer.
type Collector struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewCollector registers the widget metrics, plus the Go and process
// collectors, on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widgets_total",
			Help:      "Widgets that settled, by final state and error kind",
		}, []string{"state", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "widget_duration_seconds",
			Help:      "Time from Init to the final render, including the request delay",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms .. 32s
		}, []string{"state"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Widget requests currently being served",
		}),
	}
}

// Registry returns the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveWidget implements widget.Observer
func (c *Collector) ObserveWidget(state widget.State, kind string, elapsed time.Duration) {
	c.outcomes.WithLabelValues(state.String(), kind).Inc()
	c.duration.WithLabelValues(state.String()).Observe(elapsed.Seconds())
}

// TrackRequest increments the in-flight gauge and returns the matching decrement
func (c *Collector) TrackRequest() func() {
	c.inFlight.Inc()
	return c.inFlight.Dec
}
