// Package metrics exposes benchmark measurements as Prometheus metrics.
//
// All methods are safe to call on a nil *Collector, in which case nothing is recorded.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cachebench"

// Cache modes used as label values.
const (
	ModeCache   = "cache"
	ModeNoCache = "no-cache"
)

// Mode returns the mode label for a batch.
func Mode(cacheDisabled bool) string {
	if cacheDisabled {
		return ModeNoCache
	}
	return ModeCache
}

type Collector struct {
	// Round trip durations. Labels: mode
	RequestDuration *prometheus.HistogramVec
	// Batch averages as emitted by the stopwatch. Labels: iteration, mode
	BatchAverage *prometheus.GaugeVec
	// Failed queries. Labels: mode, completed
	QueryFailures *prometheus.CounterVec
	// Responses by Cache-Status. Labels: mode, status
	CacheStatus *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Round trip duration of FHIR search requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"mode"}),
		BatchAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_average_milliseconds",
			Help:      "Average response time of a batch, excluding the warm-up request.",
		}, []string{"iteration", "mode"}),
		QueryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Queries that failed, by whether the round trip completed.",
		}, []string{"mode", "completed"}),
		CacheStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses by Cache-Status (hit, fwd or none).",
		}, []string{"mode", "status"}),
	}
	reg.MustRegister(c.RequestDuration, c.BatchAverage, c.QueryFailures, c.CacheStatus)
	return c
}

func (c *Collector) ObserveRequest(cacheDisabled bool, elapsed time.Duration, cacheStatus string) {
	if c == nil {
		return
	}
	mode := Mode(cacheDisabled)
	c.RequestDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if cacheStatus == "" {
		cacheStatus = "none"
	}
	c.CacheStatus.WithLabelValues(mode, cacheStatus).Inc()
}

func (c *Collector) ObserveAverage(iteration int, cacheDisabled bool, millis int64) {
	if c == nil {
		return
	}
	c.BatchAverage.WithLabelValues(strconv.Itoa(iteration), Mode(cacheDisabled)).Set(float64(millis))
}

func (c *Collector) ObserveFailure(cacheDisabled bool, completed bool) {
	if c == nil {
		return
	}
	c.QueryFailures.WithLabelValues(Mode(cacheDisabled), strconv.FormatBool(completed)).Inc()
}
