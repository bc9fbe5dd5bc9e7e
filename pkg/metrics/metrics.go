package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "meterboard_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	storeQueryTotal   *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	httpRequestsTotal *prometheus.CounterVec

	chartRows    prometheus.Histogram
	chartSources prometheus.Histogram
)

// Init registers the collectors with reg. It is a no-op after the first call.
// Until Init is called every Observe function does nothing.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		storeQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_query_total",
				Help: "Total time-series store queries by kind and result",
			},
			[]string{"query", "result"},
		)
		storeQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_query_latency_seconds",
				Help:    "Time-series store query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query", "result"},
		)
		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total API requests by route and status code",
			},
			[]string{"route", "code"},
		)
		chartRows = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "chart_rows",
				Help:    "Number of merged rows per chart response",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
		chartSources = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "chart_sources",
				Help:    "Number of sources per chart response",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		)

		reg.MustRegister(
			storeQueryTotal,
			storeQueryLatency,
			httpRequestsTotal,
			chartRows,
			chartSources,
		)
	})
}

// ObserveStoreQuery records a store query's duration and result.
func ObserveStoreQuery(query, result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if storeQueryTotal != nil {
		storeQueryTotal.WithLabelValues(query, result).Inc()
	}
	if storeQueryLatency != nil {
		storeQueryLatency.WithLabelValues(query, result).Observe(duration.Seconds())
	}
}

// IncHTTPRequest counts an API response.
func IncHTTPRequest(route, code string) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(route, code).Inc()
	}
}

// ObserveChart records the shape of a merged chart.
func ObserveChart(sources, rows int) {
	if chartSources != nil {
		chartSources.Observe(float64(sources))
	}
	if chartRows != nil {
		chartRows.Observe(float64(rows))
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
