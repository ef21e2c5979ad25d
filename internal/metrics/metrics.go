// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PointerEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kart_pointer_events_total",
		Help: "Pointer-move events by hit-test result",
	}, []string{"result"})
	ClicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kart_clicks_total",
		Help: "Click events by hit-test result",
	}, []string{"result"})
	PositionUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kart_position_updates_total",
		Help: "Geolocation fixes delivered to controllers",
	})
	GeolocationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kart_geolocation_errors_total",
		Help: "Geolocation errors reported by clients, by browser error code",
	}, []string{"code"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kart_sessions_active",
		Help: "Map sessions currently open",
	})
	RosterSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kart_roster_size",
		Help:    "Number of municipalities per roster rebuild",
		Buckets: []float64{0, 10, 50, 100, 200, 300, 400, 500},
	})
	LayerLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kart_layer_loads_total",
		Help: "GeoJSON layer loads by layer and status",
	}, []string{"layer", "status"})
)

func init() {
	prometheus.MustRegister(PointerEventsTotal)
	prometheus.MustRegister(ClicksTotal)
	prometheus.MustRegister(PositionUpdatesTotal)
	prometheus.MustRegister(GeolocationErrorsTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(RosterSize)
	prometheus.MustRegister(LayerLoadsTotal)
}

// HitResult labels a hit-test outcome.
func HitResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Handler serves the registered metrics.
func Handler() http.Handler { return promhttp.Handler() }
