package main

import (
	"bytes"
	"context"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/always-cache/cachebench/origin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestGetConfig(t *testing.T) {
	filename := writeFile(t, "cachebench.yaml", `
server: http://localhost:8080/baseR4
repeats: 10
noCache: [3, 7]
timeout: 5s
proxy:
  enabled: true
  db: cache.db
`)
	config, err := getConfig(filename, true)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/baseR4", config.Server)
	assert.Equal(t, 10, config.Repeats)
	assert.Equal(t, []int{3, 7}, config.NoCache)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.True(t, config.Proxy.Enabled)
	assert.Equal(t, "cache.db", config.Proxy.DB)
	// defaults remain for missing values
	assert.Equal(t, "localhost:8090", config.Proxy.Addr)
	assert.Equal(t, 1, config.Concurrency)
	assert.NoError(t, config.validate())
}

func TestGetConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	config, err := getConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), config)

	_, err = getConfig(missing, true)
	assert.Error(t, err)
}

func TestGetConfigInvalidYaml(t *testing.T) {
	filename := writeFile(t, "cachebench.yaml", "repeats: [")
	_, err := getConfig(filename, true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, modify := range map[string]func(*Config){
		"no server":         func(c *Config) { c.Server = "" },
		"relative server":   func(c *Config) { c.Server = "baseR4" },
		"negative repeats":  func(c *Config) { c.Repeats = -1 },
		"zero iteration":    func(c *Config) { c.NoCache = []int{0, 1} },
		"negative rate":     func(c *Config) { c.RateLimit = -1 },
		"bad metrics addr":  func(c *Config) { c.MetricsAddr = "nowhere" },
		"no proxy database": func(c *Config) { c.Proxy.DB = "" },
	} {
		t.Run(name, func(t *testing.T) {
			config := defaultConfig()
			modify(&config)
			assert.Error(t, config.validate())
		})
	}
	assert.NoError(t, defaultConfig().validate())
}

func TestParseIndices(t *testing.T) {
	indices, err := parseIndices("1, 3,,7")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7}, indices)

	indices, err = parseIndices("")
	require.NoError(t, err)
	assert.Empty(t, indices)

	_, err = parseIndices("1,x")
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	require.NoError(t, flag.Set("repeats", "5"))
	require.NoError(t, flag.Set("no-cache", "2,4"))
	require.NoError(t, flag.Set("timeout", "2s"))
	require.NoError(t, flag.Set("proxy", "true"))
	t.Cleanup(func() {
		flag.Set("repeats", "0")
		flag.Set("no-cache", "")
		flag.Set("timeout", "")
		flag.Set("proxy", "false")
	})

	config := defaultConfig()
	require.NoError(t, applyFlags(&config))
	assert.Equal(t, 5, config.Repeats)
	assert.Equal(t, []int{2, 4}, config.NoCache)
	assert.Equal(t, 2*time.Second, config.Timeout)
	assert.True(t, config.Proxy.Enabled)
	// not set on the command line
	assert.Equal(t, "http://hapi.fhir.org/baseR4", config.Server)
}

func TestRunThroughProxy(t *testing.T) {
	families := []string{"SMITH", "JONES", "BROWN"}
	o := origin.New(origin.Config{
		Latency:  10 * time.Millisecond,
		MaxAge:   time.Hour,
		Patients: origin.GeneratePatients(families, 1),
	})
	originServer := httptest.NewServer(o.Handler())
	defer originServer.Close()

	config := defaultConfig()
	config.Server = originServer.URL + "/baseR4"
	config.Surnames = writeFile(t, "surnames.txt", "SMITH\nJONES\nBROWN\n")
	config.Proxy.Enabled = true
	config.Proxy.Addr = "127.0.0.1:0"

	var out bytes.Buffer
	ok, err := run(context.Background(), config, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "cache advantage PASSED")
	// iteration 2 was answered by the proxy
	assert.Equal(t, int64(6), o.Requests())
}
