package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smc_signals_generated_total", Help: "Signals emitted by the engine"},
		[]string{"symbol", "direction"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smc_signals_rejected_total", Help: "Evaluations that ended in a rejection"},
		[]string{"symbol", "stage"},
	)
	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smc_evaluation_duration_seconds",
			Help:    "Time to fetch candles and evaluate one symbol",
			Buckets: prometheus.DefBuckets,
		},
	)
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smc_provider_errors_total", Help: "Candle provider failures"},
		[]string{"provider"},
	)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smc_candle_cache_requests_total", Help: "Candle cache lookups by outcome"},
		[]string{"result"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smc_events_published_total", Help: "Events delivered on the in-process bus"},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(SignalsGenerated, SignalsRejected, EvaluationDuration, ProviderErrors, CacheRequests, EventsPublished)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGenerated counts an emitted signal
func RecordGenerated(symbol, direction string) {
	SignalsGenerated.WithLabelValues(strings.ToUpper(symbol), direction).Inc()
}

// RecordRejected counts a rejection at the given stage
func RecordRejected(symbol, stage string) {
	SignalsRejected.WithLabelValues(strings.ToUpper(symbol), stage).Inc()
}

// ObserveEvaluation records how long one evaluation took
func ObserveEvaluation(d time.Duration) {
	EvaluationDuration.Observe(d.Seconds())
}

// RecordProviderError counts a failed candle fetch
func RecordProviderError(provider string) {
	ProviderErrors.WithLabelValues(provider).Inc()
}

// RecordCacheResult counts a cache hit, miss or bypass
func RecordCacheResult(result string) {
	CacheRequests.WithLabelValues(result).Inc()
}

// RecordEvent counts one bus event by type
func RecordEvent(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}
