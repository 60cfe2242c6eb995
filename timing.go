package cachebench

import (
	"net/http"
	"sync"
	"time"

	"github.com/always-cache/cachebench/metrics"
	"github.com/always-cache/cachebench/rfc9211"
	"github.com/always-cache/cachebench/stopwatch"
)

// timingInterceptor feeds every round trip into the stopwatch
// and keeps track of what it emitted for the current batch.
type timingInterceptor struct {
	aggregator *stopwatch.Aggregator
	metrics    *metrics.Collector

	mu        sync.Mutex
	batch     BatchSpec
	emitted   []stopwatch.Average
	responses int
	hits      int
}

type batchTiming struct {
	emitted   []stopwatch.Average
	responses int
	hits      int
}

func newTimingInterceptor(aggregator *stopwatch.Aggregator, collector *metrics.Collector) *timingInterceptor {
	return &timingInterceptor{
		aggregator: aggregator,
		metrics:    collector,
	}
}

// begin resets the stopwatch for the batch.
func (t *timingInterceptor) begin(batch BatchSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batch = batch
	t.emitted = nil
	t.responses = 0
	t.hits = 0
	t.aggregator.Reset(len(batch.Parameters))
}

func (t *timingInterceptor) InterceptRequest(*http.Request) error {
	t.aggregator.OnRequestStart()
	return nil
}

func (t *timingInterceptor) InterceptResponse(res *http.Response, elapsed time.Duration) error {
	avg, emitted := t.aggregator.OnResponseReceived(elapsed.Milliseconds())
	cs, hasStatus := rfc9211.Last(res.Header.Values("Cache-Status"))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses++
	status := ""
	if hasStatus {
		status = string(cs.Status)
		if cs.IsHit() {
			t.hits++
		}
	}
	if emitted {
		t.emitted = append(t.emitted, avg)
	}
	t.metrics.ObserveRequest(t.batch.CacheDisabled, elapsed, status)
	return nil
}

// skip discounts a request that never received a response.
func (t *timingInterceptor) skip() {
	avg, emitted := t.aggregator.Skip()
	if emitted {
		t.mu.Lock()
		t.emitted = append(t.emitted, avg)
		t.mu.Unlock()
	}
}

func (t *timingInterceptor) end() batchTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	return batchTiming{
		emitted:   t.emitted,
		responses: t.responses,
		hits:      t.hits,
	}
}
