package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	responsetransformer "github.com/always-cache/cachebench/pkg/response-transformer"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Base URL of the FHIR server.
	Server string `yaml:"server" validate:"required,url"`
	// File with one family name per line.
	Surnames string `yaml:"surnames" validate:"required"`
	Repeats  int    `yaml:"repeats" validate:"gte=0"`
	// 1-based iterations that are sent with caching disabled.
	NoCache []int `yaml:"noCache" validate:"dive,gte=1"`
	// Timeout of a single request. Zero means no timeout.
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	Concurrency int           `yaml:"concurrency" validate:"gte=0"`
	// Requests per second. Zero means unlimited.
	RateLimit  float64 `yaml:"rateLimit" validate:"gte=0"`
	LogHeaders bool    `yaml:"logHeaders"`
	LogFile    string  `yaml:"logFile"`
	// Address to serve Prometheus metrics on, e.g. ":9090".
	MetricsAddr string      `yaml:"metricsAddr" validate:"omitempty,hostname_port"`
	Proxy       ProxyConfig `yaml:"proxy"`
}

// ProxyConfig configures the local caching proxy.
// When enabled, the benchmark queries the server through the proxy.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`
	// Address to listen on.
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// Cache DB file name, or "memory" for the in-memory LRU cache.
	DB string `yaml:"db" validate:"required"`
	// Maximum number of entries of the in-memory cache.
	Size int `yaml:"size" validate:"gte=0"`
	// Caching headers for servers that do not send them.
	Rules responsetransformer.Rules `yaml:"rules"`
}

func defaultConfig() Config {
	return Config{
		Server:      "http://hapi.fhir.org/baseR4",
		Surnames:    "testdata/surnames.txt",
		Repeats:     3,
		NoCache:     []int{1, 3},
		Timeout:     30 * time.Second,
		Concurrency: 1,
		Proxy: ProxyConfig{
			Addr: "localhost:8090",
			DB:   "memory",
		},
	}
}

// getConfig reads the config file on top of the defaults.
// A missing file is not an error if it was not explicitly requested.
func getConfig(filename string, required bool) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", filename, err)
	}
	return config, nil
}

func (c Config) validate() error {
	return validator.New().Struct(c)
}
