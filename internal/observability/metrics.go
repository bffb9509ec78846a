package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate per endpoint. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External weather API latency. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Geocoding API call rate. Includes soft no-result responses under "empty".
	GeocodingCallsTotal *prometheus.CounterVec

	// Cache hits by backend. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses by backend; includes entries found but past their TTL.
	CacheMissesTotal *prometheus.CounterVec

	// Auth provider operations by result. Watch for: error spikes after deploys.
	AuthOperationsTotal *prometheus.CounterVec

	// Session checks by outcome (present / absent). Absent spikes = provider lag.
	SessionChecksTotal *prometheus.CounterVec

	// City searches issued against the geocoding+enrichment flow.
	SearchesTotal prometheus.Counter

	// Enrichment lookups dropped because a single candidate's fetch failed.
	SearchCandidatesDroppedTotal prometheus.Counter

	// Debounced search tasks superseded before they could publish.
	SearchDebounceCancelledTotal prometheus.Counter

	// Weather fetches superseded by a newer fetch before publishing.
	WeatherFetchSupersededTotal prometheus.Counter

	// Geolocation resolutions that timed out and fell back to the default coordinate.
	LocationFallbacksTotal prometheus.Counter

	// Bus events dropped because a subscriber's buffer was full.
	BusEventsDroppedTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	GeocodingCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocodingCallsTotal",
			Help: "Total number of geocoding API calls",
		},
		[]string{"status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of current-conditions cache hits",
		},
		[]string{"backend"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of current-conditions cache misses (absent or stale)",
		},
		[]string{"backend"},
	)
	AuthOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authOperationsTotal",
			Help: "Auth provider operations by result",
		},
		[]string{"operation", "result"},
	)
	SessionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionChecksTotal",
			Help: "Current-session lookups by outcome",
		},
		[]string{"outcome"},
	)
	SearchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "citySearchesTotal",
			Help: "Total number of city searches executed",
		},
	)
	SearchCandidatesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "citySearchCandidatesDroppedTotal",
			Help: "Search candidates dropped because live-conditions enrichment failed",
		},
	)
	SearchDebounceCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchDebounceCancelledTotal",
			Help: "Debounced search tasks cancelled by a newer keystroke",
		},
	)
	WeatherFetchSupersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherFetchSupersededTotal",
			Help: "Weather fetches cancelled because a newer fetch replaced them",
		},
	)
	LocationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locationFallbacksTotal",
			Help: "Geolocation resolutions that fell back to the default coordinate",
		},
	)
	BusEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busEventsDroppedTotal",
			Help: "Events dropped because a subscriber buffer was full",
		},
		[]string{"event"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, GeocodingCallsTotal,
		CacheHitsTotal, CacheMissesTotal,
		AuthOperationsTotal, SessionChecksTotal,
		SearchesTotal, SearchCandidatesDroppedTotal, SearchDebounceCancelledTotal,
		WeatherFetchSupersededTotal, LocationFallbacksTotal,
		BusEventsDroppedTotal,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
