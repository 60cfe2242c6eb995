package cachebench

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/always-cache/cachebench/cache"
	"github.com/always-cache/cachebench/fhir"
	"github.com/always-cache/cachebench/origin"
	"github.com/always-cache/cachebench/proxy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunThroughCachingProxy(t *testing.T) {
	providers := map[string]func() (cache.Provider, error){
		"memory": func() (cache.Provider, error) { return cache.NewMemCache(cache.DefaultMemCacheSize) },
		"sqlite": func() (cache.Provider, error) { return cache.NewSQLiteCache("") },
	}
	for name, newProvider := range providers {
		t.Run(name, func(t *testing.T) {
			logger := zerolog.Nop()
			parameters := surnames(20)
			patients := origin.GeneratePatients(parameters, 2)

			o := origin.New(origin.Config{
				Latency:  20 * time.Millisecond,
				MaxAge:   time.Hour,
				Patients: patients,
				Logger:   &logger,
			})
			originServer := httptest.NewServer(o.Handler())
			defer originServer.Close()
			originURL, err := url.Parse(originServer.URL)
			require.NoError(t, err)

			provider, err := newProvider()
			require.NoError(t, err)
			defer provider.Close()
			p := proxy.New(proxy.Config{Cache: provider, OriginURL: *originURL, Logger: &logger})
			proxyServer := httptest.NewServer(p.Handler())
			defer proxyServer.Close()

			client, err := fhir.NewClient(fhir.Config{
				BaseURL: proxyServer.URL + "/baseR4",
				Timeout: 5 * time.Second,
				Logger:  &logger,
			})
			require.NoError(t, err)

			result, err := newTestBenchmark(Config{}).Run(context.Background(), client, parameters, 3, []int{1, 3})
			require.NoError(t, err)

			require.Len(t, result.Batches, 3)
			assert.Empty(t, result.Failures)
			assert.Zero(t, result.Batches[0].CacheHits)
			assert.Equal(t, 20, result.Batches[1].CacheHits)
			assert.Zero(t, result.Batches[2].CacheHits)
			// family search matches by prefix, so MARTIN also finds MARTINEZ
			expected := 0
			for _, family := range parameters {
				for _, patient := range patients {
					if strings.HasPrefix(patient.Name[0].Family, family) {
						expected++
					}
				}
			}
			require.Equal(t, 42, expected)
			for _, batch := range result.Batches {
				assert.Len(t, batch.Records, expected)
			}
			// the cached iteration never reached the origin
			assert.Equal(t, int64(40), o.Requests())
			assert.Equal(t, 20, provider.Len())
			assert.True(t, result.Verify(), "averages %v", result.Averages.Values())
		})
	}
}
