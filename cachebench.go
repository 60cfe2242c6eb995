// Package cachebench measures how much an HTTP response cache in front of a
// FHIR server speeds up repeated patient searches.
//
// A benchmark runs the same batch of searches several times. Selected
// iterations send every request with Cache-Control: no-cache, the others
// let the cache answer. The average response time of each iteration is
// recorded and the cache-enabled iterations are expected to be at least
// as fast as the cache-disabled ones.
package cachebench

import (
	"context"
	"fmt"

	"github.com/always-cache/cachebench/fhir"
	"github.com/always-cache/cachebench/metrics"
	cachetoggle "github.com/always-cache/cachebench/pkg/cache-toggle"
	"github.com/always-cache/cachebench/stopwatch"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// QueryClient is a FHIR client that supports request interceptors.
type QueryClient interface {
	Searcher
	RegisterInterceptor(fhir.Interceptor) error
	UnregisterInterceptor(fhir.Interceptor) error
}

type Config struct {
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Metrics collector. Nothing is recorded if nil.
	Metrics *metrics.Collector
	// Maximum number of searches in flight within a batch.
	Concurrency int
	// Searches started per second. Zero means unlimited.
	RateLimit float64
	// Toggle attached during cache-disabled iterations.
	// Defaults to Cache-Control: no-cache.
	Toggle *cachetoggle.Toggle
}

// BatchSpec describes one iteration of the benchmark.
type BatchSpec struct {
	// 1-based
	RepeatIndex   int
	Parameters    []string
	CacheDisabled bool
}

type BatchResult struct {
	Iteration     int
	CacheDisabled bool
	// Sorted records of all searches in the batch.
	Records []string
	// Completed round trips, including error statuses.
	Responses int
	// Responses with a Cache-Status hit from the closest cache.
	CacheHits int
	Failures  int
	Average   stopwatch.Average
	// False if the stopwatch did not emit an average for this batch.
	HasAverage bool
}

type Result struct {
	RunID    string
	Repeats  int
	NoCache  []int
	Averages AverageRecord
	Batches  []BatchResult
	Failures []QueryFailure
}

// Verify checks the averages with VerifyCacheAdvantage.
func (r Result) Verify() bool {
	return VerifyCacheAdvantage(r.Averages, r.NoCache)
}

type Benchmark struct {
	runner  *Runner
	toggle  *cachetoggle.Toggle
	metrics *metrics.Collector
	log     zerolog.Logger
}

func New(config Config) *Benchmark {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	toggle := config.Toggle
	if toggle == nil {
		toggle = cachetoggle.NoCache()
	}

	return &Benchmark{
		runner:  NewRunner(config.Concurrency, limiter, logger),
		toggle:  toggle,
		metrics: config.Metrics,
		log:     logger,
	}
}

// Run executes numberOfRepeats batches of searches, one per parameter.
// Iterations listed in noCacheIndices (1-based) are run with the cache toggle attached.
// Failed searches do not stop the run. An error is returned if the context
// is done or the cache toggle could not be attached or detached.
// The partial result gathered so far is returned along with the error.
func (b *Benchmark) Run(ctx context.Context, client QueryClient, parameters []string, numberOfRepeats int, noCacheIndices []int) (Result, error) {
	result := Result{
		RunID:   uuid.NewString(),
		Repeats: numberOfRepeats,
		NoCache: noCacheIndices,
	}
	logger := b.log.With().Str("run", result.RunID).Logger()

	if len(parameters) == 0 || numberOfRepeats <= 0 {
		logger.Warn().
			Int("parameters", len(parameters)).
			Int("repeats", numberOfRepeats).
			Msg("Nothing to run")
		return result, nil
	}

	noCache := make(map[int]bool, len(noCacheIndices))
	for _, k := range noCacheIndices {
		if k < 1 || k > numberOfRepeats {
			logger.Warn().Int("iteration", k).Msg("No-cache iteration out of range, ignoring")
			continue
		}
		noCache[k] = true
	}

	aggregator := stopwatch.New(len(parameters), &logger)
	timing := newTimingInterceptor(aggregator, b.metrics)
	if err := client.RegisterInterceptor(timing); err != nil {
		return result, fmt.Errorf("register timing interceptor: %w", err)
	}
	defer func() {
		if err := client.UnregisterInterceptor(timing); err != nil {
			logger.Error().Err(err).Msg("Could not unregister timing interceptor")
		}
	}()

	logger.Info().
		Int("parameters", len(parameters)).
		Int("repeats", numberOfRepeats).
		Ints("noCache", noCacheIndices).
		Msg("Starting benchmark")

	for i := 1; i <= numberOfRepeats; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := BatchSpec{
			RepeatIndex:   i,
			Parameters:    parameters,
			CacheDisabled: noCache[i],
		}
		batchResult, failures, err := b.runBatch(ctx, client, timing, batch, logger)
		result.Batches = append(result.Batches, batchResult)
		result.Failures = append(result.Failures, failures...)
		if batchResult.HasAverage {
			result.Averages.Set(i, batchResult.Average.Millis)
		}
		if err != nil {
			return result, err
		}
	}

	logger.Info().Ints("iterations", result.Averages.Iterations()).Msg("Benchmark complete")
	return result, nil
}

func (b *Benchmark) runBatch(ctx context.Context, client QueryClient, timing *timingInterceptor, batch BatchSpec, logger zerolog.Logger) (BatchResult, []QueryFailure, error) {
	i := batch.RepeatIndex
	result := BatchResult{
		Iteration:     i,
		CacheDisabled: batch.CacheDisabled,
	}
	logger.Info().
		Int("iteration", i).
		Bool("noCache", batch.CacheDisabled).
		Msgf("==== Query Group %d ====", i)

	timing.begin(batch)

	attached := false
	if batch.CacheDisabled {
		b.toggle.Arm()
		if err := client.RegisterInterceptor(b.toggle); err != nil {
			b.toggle.Disarm()
			return result, nil, &ToggleStateError{Iteration: i, Op: "attach", Err: err}
		}
		attached = true
	} else {
		b.toggle.Disarm()
	}

	records, failures, runErr := b.runner.RunBatch(ctx, client, batch.Parameters)

	var toggleErr error
	if attached {
		if err := client.UnregisterInterceptor(b.toggle); err != nil {
			toggleErr = &ToggleStateError{Iteration: i, Op: "detach", Err: err}
		}
		b.toggle.Disarm()
	}

	for idx := range failures {
		failures[idx].Iteration = i
		b.metrics.ObserveFailure(batch.CacheDisabled, failures[idx].Completed)
		if !failures[idx].Completed {
			timing.skip()
		}
	}

	t := timing.end()
	result.Records = records
	result.Responses = t.responses
	result.CacheHits = t.hits
	result.Failures = len(failures)
	if n := len(t.emitted); n > 0 {
		if n > 1 {
			logger.Warn().Int("iteration", i).Int("averages", n).Msg("Stopwatch emitted more than once, keeping the last")
		}
		result.Average = t.emitted[n-1]
		result.HasAverage = true
		b.metrics.ObserveAverage(i, batch.CacheDisabled, result.Average.Millis)
	} else if runErr == nil {
		logger.Warn().Int("iteration", i).Msg("No average emitted")
	}

	logger.Info().
		Int("iteration", i).
		Int("records", len(records)).
		Int("hits", result.CacheHits).
		Int("failures", result.Failures).
		Msg("Query group complete")

	if runErr != nil {
		return result, failures, runErr
	}
	return result, failures, toggleErr
}
