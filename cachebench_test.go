package cachebench

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/always-cache/cachebench/metrics"
	cachetoggle "github.com/always-cache/cachebench/pkg/cache-toggle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surnames(n int) []string {
	all := []string{
		"SMITH", "JOHNSON", "WILLIAMS", "BROWN", "JONES",
		"GARCIA", "MILLER", "DAVIS", "RODRIGUEZ", "MARTINEZ",
		"HERNANDEZ", "LOPEZ", "GONZALEZ", "WILSON", "ANDERSON",
		"THOMAS", "TAYLOR", "MOORE", "JACKSON", "MARTIN",
	}
	return all[:n]
}

func newTestBenchmark(config Config) *Benchmark {
	logger := zerolog.Nop()
	config.Logger = &logger
	return New(config)
}

func TestRunThreeIterations(t *testing.T) {
	client := newFakeClient()
	parameters := surnames(20)
	for _, p := range parameters {
		client.patients[p] = 2
	}

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, parameters, 3, []int{1, 3})
	require.NoError(t, err)

	require.Len(t, result.Batches, 3)
	assert.Equal(t, []int{1, 2, 3}, result.Averages.Iterations())
	// first response of each batch is warm-up: 19 * 50 / 20 and 19 * 5 / 20
	assert.Equal(t, []int64{47, 4, 47}, result.Averages.Values())
	assert.True(t, result.Verify())

	assert.True(t, result.Batches[0].CacheDisabled)
	assert.False(t, result.Batches[1].CacheDisabled)
	assert.True(t, result.Batches[2].CacheDisabled)
	assert.Equal(t, 20, result.Batches[1].CacheHits)
	assert.Zero(t, result.Batches[0].CacheHits)
	for _, batch := range result.Batches {
		assert.Len(t, batch.Records, 40)
		assert.Equal(t, 20, batch.Responses)
		assert.IsNonDecreasing(t, batch.Records)
	}

	// exactly the requests of iterations 1 and 3 carried no-cache
	require.Len(t, client.noCache, 60)
	for i, noCache := range client.noCache {
		iteration := i/20 + 1
		assert.Equal(t, iteration != 2, noCache, "request %d", i)
	}
	assert.Zero(t, client.registered())
	assert.NotEmpty(t, result.RunID)
}

func TestRunTenIterations(t *testing.T) {
	client := newFakeClient()
	parameters := surnames(20)

	result, err := newTestBenchmark(Config{Concurrency: 4}).Run(context.Background(), client, parameters, 10, []int{3, 7})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Averages.Len())
	for _, i := range result.Averages.Iterations() {
		avg, _ := result.Averages.Get(i)
		if i == 3 || i == 7 {
			assert.Equal(t, int64(47), avg, "iteration %d", i)
		} else {
			assert.Equal(t, int64(4), avg, "iteration %d", i)
		}
	}
	assert.True(t, result.Verify())
}

func TestRunSingleParameter(t *testing.T) {
	client := newFakeClient()
	client.patients["SMITH"] = 1

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, []string{"SMITH"}, 3, []int{1, 3})
	require.NoError(t, err)
	// the only request of each batch is the warm-up
	assert.Equal(t, []int64{0, 0, 0}, result.Averages.Values())
	assert.True(t, result.Verify())
}

func TestRunNothing(t *testing.T) {
	client := newFakeClient()
	b := newTestBenchmark(Config{})

	result, err := b.Run(context.Background(), client, surnames(3), 0, []int{1})
	require.NoError(t, err)
	assert.Empty(t, result.Batches)
	assert.Zero(t, result.Averages.Len())
	assert.True(t, result.Verify())

	result, err = b.Run(context.Background(), client, nil, 3, []int{1})
	require.NoError(t, err)
	assert.Empty(t, result.Batches)
	assert.Empty(t, client.noCache)
}

func TestRunToggleAttachFails(t *testing.T) {
	client := newFakeClient()
	client.registerErr = errors.New("chain locked")

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, surnames(2), 3, []int{2})
	var toggleErr *ToggleStateError
	require.ErrorAs(t, err, &toggleErr)
	assert.Equal(t, 2, toggleErr.Iteration)
	assert.Equal(t, "attach", toggleErr.Op)

	// iteration 1 completed before the failure, no request of iteration 2 was sent
	assert.Equal(t, []int{1}, result.Averages.Iterations())
	assert.Len(t, client.noCache, 2)
	assert.Zero(t, client.registered())
}

func TestRunToggleDetachFails(t *testing.T) {
	client := newFakeClient()
	client.unregisterErr = errors.New("chain locked")
	toggle := cachetoggle.NoCache()

	result, err := newTestBenchmark(Config{Toggle: toggle}).Run(context.Background(), client, surnames(2), 3, []int{1})
	var toggleErr *ToggleStateError
	require.ErrorAs(t, err, &toggleErr)
	assert.Equal(t, 1, toggleErr.Iteration)
	assert.Equal(t, "detach", toggleErr.Op)
	assert.Len(t, result.Batches, 1)
	assert.False(t, toggle.Armed())
}

func TestRunSkipsFailedQueries(t *testing.T) {
	client := newFakeClient()
	parameters := surnames(5)
	client.fail["BROWN"] = errConnectionRefused

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, parameters, 2, []int{1})
	require.NoError(t, err)

	// four completed round trips per batch: (3 * 50) / 4 and (3 * 5) / 4
	assert.Equal(t, []int64{37, 3}, result.Averages.Values())
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 1, result.Failures[0].Iteration)
	assert.Equal(t, 2, result.Failures[1].Iteration)
	assert.Equal(t, "BROWN", result.Failures[1].Parameter)
	assert.Equal(t, 4, result.Batches[0].Responses)
	assert.Equal(t, 1, result.Batches[0].Failures)
}

func TestRunCountsErrorStatuses(t *testing.T) {
	client := newFakeClient()
	parameters := surnames(4)
	client.status["BROWN"] = http.StatusServiceUnavailable

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, parameters, 1, nil)
	require.NoError(t, err)

	// all four responses are timed: 3 * 5 / 4
	assert.Equal(t, []int64{3}, result.Averages.Values())
	require.Len(t, result.Failures, 1)
	assert.True(t, result.Failures[0].Completed)
}

func TestRunAllFailed(t *testing.T) {
	client := newFakeClient()
	client.fail["SMITH"] = errConnectionRefused

	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, []string{"SMITH"}, 2, []int{1})
	require.NoError(t, err)
	assert.Zero(t, result.Averages.Len())
	assert.False(t, result.Batches[0].HasAverage)
	assert.True(t, result.Verify())
}

func TestRunCanceled(t *testing.T) {
	client := newFakeClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBenchmark(Config{}).Run(ctx, client, surnames(2), 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.registered())
}

func TestRunRecordsMetrics(t *testing.T) {
	client := newFakeClient()
	collector := metrics.NewCollector(prometheus.NewRegistry())

	_, err := newTestBenchmark(Config{Metrics: collector}).Run(context.Background(), client, surnames(4), 2, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.CacheStatus.WithLabelValues(metrics.ModeNoCache, "fwd")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.CacheStatus.WithLabelValues(metrics.ModeCache, "hit")))
	assert.Equal(t, 37.0, testutil.ToFloat64(collector.BatchAverage.WithLabelValues("1", metrics.ModeNoCache)))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.BatchAverage.WithLabelValues("2", metrics.ModeCache)))
}

func TestRenderSummary(t *testing.T) {
	client := newFakeClient()
	result, err := newTestBenchmark(Config{}).Run(context.Background(), client, surnames(4), 2, []int{1})
	require.NoError(t, err)

	var buf bytes.Buffer
	RenderSummary(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "Average (ms)")
	assert.Contains(t, out, "no-cache")
	assert.Contains(t, out, "cache advantage PASSED")
	assert.Contains(t, out, result.RunID)
}

func TestRunLimiterDeadlineSkipsQuery(t *testing.T) {
	client := newFakeClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := newTestBenchmark(Config{RateLimit: 1.0 / 3600})
	result, err := b.Run(ctx, client, surnames(2), 1, nil)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.False(t, result.Failures[0].Completed)
	// the batch still emits over the one completed search, which is the warm-up
	require.True(t, result.Batches[0].HasAverage)
	assert.Equal(t, []int64{0}, result.Averages.Values())
}

func TestRunIgnoresOutOfRangeNoCacheIterations(t *testing.T) {
	client := newFakeClient()
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	result, err := New(Config{Logger: &logger}).Run(context.Background(), client, surnames(2), 2, []int{0, 3})
	require.NoError(t, err)
	for _, batch := range result.Batches {
		assert.False(t, batch.CacheDisabled)
	}
	for _, noCache := range client.noCache {
		assert.False(t, noCache)
	}
	assert.Contains(t, logs.String(), "No-cache iteration out of range")
	assert.True(t, result.Verify())
}
