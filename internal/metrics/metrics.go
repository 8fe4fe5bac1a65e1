// Package metrics defines the Prometheus instrumentation shared by the API
// and gateway processes. Collectors are package-level and registered once at
// init; Handler exposes them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_position_reports_total",
		Help: "Total number of accepted position reports",
	})
	TransitionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evtrak_transition_events_total",
		Help: "Total geofence transition events fired, by kind",
	}, []string{"kind"})
	GeofenceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_geofence_cache_hits_total",
		Help: "Total geofence cache hits (including cached not-found entries)",
	})
	GeofenceCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_geofence_cache_misses_total",
		Help: "Total geofence cache misses that triggered a store load",
	})
	GeofenceLoadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_geofence_load_failures_total",
		Help: "Total geofence store loads that failed (excluding not-found)",
	})
	PublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_publish_failures_total",
		Help: "Total failures publishing to the distribution channel",
	})
	SessionsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evtrak_sessions_connected",
		Help: "Number of live sessions currently registered with the broadcaster",
	})
	SessionOverflowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtrak_session_overflows_total",
		Help: "Total sessions disconnected because their outbound queue overflowed",
	})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evtrak_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		ReportsTotal,
		TransitionEventsTotal,
		GeofenceCacheHitsTotal,
		GeofenceCacheMissesTotal,
		GeofenceLoadFailuresTotal,
		PublishFailuresTotal,
		SessionsConnected,
		SessionOverflowsTotal,
		RequestDuration,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
