package stopwatch

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WarmUpRequests is the number of requests after each reset whose elapsed
// time is left out of the total. They still count towards the number of
// requests, so the first request of a cycle only adds to the denominator
// of the average. This absorbs connection setup cost.
const WarmUpRequests = 1

// Average is emitted once the number of requests in a cycle reaches the threshold.
type Average struct {
	// Sum of the elapsed times of the non-warm-up requests of the cycle.
	TotalMillis int64
	// Number of requests of the cycle, warm-up requests included.
	Requests int64
	// TotalMillis / Requests, using integer division.
	Millis int64
}

// Aggregator accumulates round trip times of one client session and emits
// an average every time the expected number of requests has been seen.
//
// All methods are safe for concurrent use.
type Aggregator struct {
	mu          sync.Mutex
	totalMillis int64
	requests    int64
	threshold   int64
	log         zerolog.Logger
}

// New returns an aggregator expecting threshold requests per cycle.
// The global zerolog logger is used if logger is nil.
func New(threshold int, logger *zerolog.Logger) *Aggregator {
	if logger == nil {
		logger = &log.Logger
	}
	return &Aggregator{
		threshold: int64(threshold),
		log:       logger.With().Str("component", "stopwatch").Logger(),
	}
}

// OnRequestStart is called when a request is about to be sent.
// It does not carry any state.
func (a *Aggregator) OnRequestStart() {}

// OnResponseReceived records one completed round trip.
// It returns the average of the cycle if this response completed it,
// in which case the counters are reset.
func (a *Aggregator) OnResponseReceived(elapsedMillis int64) (Average, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	if a.requests > WarmUpRequests {
		a.totalMillis += elapsedMillis
	}
	a.log.Trace().
		Int64("elapsed", elapsedMillis).
		Int64("requests", a.requests).
		Int64("threshold", a.threshold).
		Msg("Response timed")
	return a.emitIfComplete()
}

// Skip removes one expected request from the current cycle.
// It is used for requests that never completed a round trip, so that the
// average covers only the requests that did. If the requests already seen
// now complete the cycle, the average is returned.
func (a *Aggregator) Skip() (Average, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.threshold > 0 {
		a.threshold--
	}
	return a.emitIfComplete()
}

// Reset sets a new threshold and zeroes the counters.
func (a *Aggregator) Reset(threshold int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.threshold = int64(threshold)
	a.totalMillis = 0
	a.requests = 0
}

// Pending returns the number of requests recorded since the last reset or emit.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.requests)
}

// emitIfComplete must be called with the lock held.
func (a *Aggregator) emitIfComplete() (Average, bool) {
	// a zero threshold never completes, which also rules out dividing by zero
	if a.threshold == 0 || a.requests != a.threshold {
		return Average{}, false
	}
	avg := Average{
		TotalMillis: a.totalMillis,
		Requests:    a.requests,
		Millis:      a.totalMillis / a.requests,
	}
	a.log.Info().
		Int64("totalTime", avg.TotalMillis).
		Int64("requests", avg.Requests).
		Int64("average", avg.Millis).
		Msg("Average response time")
	a.totalMillis = 0
	a.requests = 0
	return avg, true
}
