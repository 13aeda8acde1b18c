package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OpDuration records durations of operations wrapped with Time.
	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "operation_duration_seconds", Help: "Duration of timed internal operations.", Buckets: prometheus.DefBuckets},
		[]string{"op", "outcome"},
	)

	// GeocodeLookups counts geocode lookups by where they were answered.
	GeocodeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_lookups_total", Help: "Geocode lookups by result (memory, store, provider, not_found, error)."},
		[]string{"result"},
	)

	// ProviderCalls counts outbound routing/geocoding provider requests.
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_calls_total", Help: "Outbound provider calls by operation and outcome."},
		[]string{"op", "outcome"},
	)

	TwoOptPasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_two_opt_passes", Help: "2-opt passes per optimization.", Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 200}},
	)

	// Schedules counts scheduleDay results by outcome (fit, dropped, over_capacity).
	Schedules = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schedules_total", Help: "Day schedules by outcome."},
		[]string{"outcome"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OpDuration)
		Registry.MustRegister(GeocodeLookups)
		Registry.MustRegister(ProviderCalls)
		Registry.MustRegister(TwoOptPasses)
		Registry.MustRegister(Schedules)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
