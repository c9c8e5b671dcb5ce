// Package metrics exposes prometheus counters for the widget bridge.
package metrics

import (
	"benwidget/internal/relay"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	namespace string
	registry  *prometheus.Registry

	dispatches *prometheus.CounterVec
	latency    prometheus.Histogram
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "ben"
	}

	c := &Collector{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	c.dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "dispatches_total",
			Help:      "Widget broadcasts handled by the relay, by action and outcome.",
		},
		[]string{"action", "outcome", "source"},
	)

	c.latency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "dispatch_seconds",
			Help:      "Time spent handling one widget broadcast.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	c.registry.MustRegister(c.dispatches, c.latency)
	return c
}

// TrackInFlight exports the relay's in-flight count as a gauge.
func (c *Collector) TrackInFlight(r *relay.Relay) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "widget",
			Name:      "dispatch_in_flight",
			Help:      "Widget broadcasts currently being dispatched.",
		},
		func() float64 { return float64(r.InFlight()) },
	))
}

func (c *Collector) ObserveDispatch(dispatch relay.Dispatch) {
	c.dispatches.WithLabelValues(dispatch.Action.String(), string(dispatch.Outcome), dispatch.Source).Inc()
	c.latency.Observe(dispatch.Duration.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
