package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the Prometheus collectors of the toolkit.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	compositeScore *prometheus.GaugeVec
	cacheLookups   *prometheus.CounterVec
}

// New creates a recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_invest_llm_requests_total",
				Help: "Total number of chat completion calls",
			},
			[]string{"provider", "model", "status"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_invest_llm_errors_total",
				Help: "Total number of failed chat completion calls by error kind",
			},
			[]string{"provider", "kind"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_invest_llm_request_duration_seconds",
				Help:    "Duration of chat completion calls including retries",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		compositeScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ai_invest_screener_composite_score",
				Help: "Last composite score computed for a ticker",
			},
			[]string{"ticker"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_invest_translation_cache_lookups_total",
				Help: "Translation cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordRequest records one completed call.
func (r *Recorder) RecordRequest(provider, model, status string, seconds float64) {
	r.requestsTotal.WithLabelValues(provider, model, status).Inc()
	r.latency.WithLabelValues(provider).Observe(seconds)
}

func (r *Recorder) RecordError(provider, kind string) {
	r.errorsTotal.WithLabelValues(provider, kind).Inc()
}

func (r *Recorder) RecordScore(ticker string, score float64) {
	r.compositeScore.WithLabelValues(ticker).Set(score)
}

// RecordCacheLookup counts a translation cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}
