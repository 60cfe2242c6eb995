package cachebench

import (
	"context"
	"sort"
	"sync"

	"github.com/always-cache/cachebench/fhir"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Searcher runs a single patient search.
type Searcher interface {
	SearchPatients(ctx context.Context, family string) (*fhir.Bundle, error)
}

// Runner executes one search per parameter and collects the resulting records.
type Runner struct {
	// Maximum number of searches in flight. Values below 2 run sequentially.
	Concurrency int
	// Limits the rate at which searches are started. Nil means no limit.
	Limiter *rate.Limiter

	log zerolog.Logger
}

func NewRunner(concurrency int, limiter *rate.Limiter, logger zerolog.Logger) *Runner {
	return &Runner{
		Concurrency: concurrency,
		Limiter:     limiter,
		log:         logger,
	}
}

// RunBatch searches every parameter once, in order when sequential.
// The records of all searches are returned as one sorted list.
// Failed searches, including searches the rate limiter could not admit before
// the context deadline, are returned as failures and do not stop the batch.
// An error is returned only if the context is done.
func (r *Runner) RunBatch(ctx context.Context, client Searcher, parameters []string) ([]string, []QueryFailure, error) {
	var mu sync.Mutex
	records := make([]string, 0)
	var failures []QueryFailure

	fail := func(parameter string, err error) {
		failure := newQueryFailure(parameter, err)
		r.log.Warn().
			Err(err).
			Str("parameter", parameter).
			Bool("completed", failure.Completed).
			Bool("timeout", failure.Timeout()).
			Msg("Query failed")
		mu.Lock()
		failures = append(failures, failure)
		mu.Unlock()
	}

	query := func(ctx context.Context, parameter string) error {
		if r.Limiter != nil {
			// Wait also fails when the deadline would pass before a token is available
			if err := r.Limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fail(parameter, err)
				return nil
			}
		}
		bundle, err := client.SearchPatients(ctx, parameter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fail(parameter, err)
			return nil
		}
		found := bundle.Records()
		r.log.Trace().Str("parameter", parameter).Int("records", len(found)).Msg("Query complete")
		mu.Lock()
		records = append(records, found...)
		mu.Unlock()
		return nil
	}

	if r.Concurrency < 2 {
		for _, parameter := range parameters {
			if err := query(ctx, parameter); err != nil {
				return nil, failures, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Concurrency)
		for _, parameter := range parameters {
			parameter := parameter
			g.Go(func() error {
				return query(gctx, parameter)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, failures, err
		}
	}

	sort.Strings(records)
	return records, failures, nil
}
