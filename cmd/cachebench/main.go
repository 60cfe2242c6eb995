package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/always-cache/cachebench"
	"github.com/always-cache/cachebench/cache"
	"github.com/always-cache/cachebench/fhir"
	"github.com/always-cache/cachebench/metrics"
	surnames "github.com/always-cache/cachebench/pkg/surname-reader"
	"github.com/always-cache/cachebench/proxy"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// CLI flags
	configFlag         string
	serverFlag         string
	surnamesFlag       string
	repeatsFlag        int
	noCacheFlag        string
	timeoutFlag        string
	concurrencyFlag    int
	rateFlag           float64
	proxyFlag          bool
	dbFilenameFlag     string
	metricsAddrFlag    string
	logFilenameFlag    string
	logHeadersFlag     bool
	verbosityTraceFlag bool

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "cachebench.yaml", "Config file (optional unless set explicitly)")
	flag.StringVar(&serverFlag, "server", "", "FHIR server base URL")
	flag.StringVar(&surnamesFlag, "surnames", "", "File with one family name per line")
	flag.IntVar(&repeatsFlag, "repeats", 0, "Number of iterations")
	flag.StringVar(&noCacheFlag, "no-cache", "", "Comma separated iterations to run with caching disabled, e.g. 1,3")
	flag.StringVar(&timeoutFlag, "timeout", "", "Timeout of a single request, e.g. 30s")
	flag.IntVar(&concurrencyFlag, "concurrency", 0, "Searches in flight within a batch")
	flag.Float64Var(&rateFlag, "rate", 0, "Searches per second (0 is unlimited)")
	flag.BoolVar(&proxyFlag, "proxy", false, "Query the server through the local caching proxy")
	flag.StringVar(&dbFilenameFlag, "db", "", "Proxy cache DB file name (use 'memory' for in-memory cache)")
	flag.StringVar(&metricsAddrFlag, "metrics", "", "Address to serve Prometheus metrics on")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")
	flag.BoolVar(&logHeadersFlag, "log-headers", false, "Log request and response headers")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	configRequired := false
	flag.Visit(func(f *flag.Flag) {
		configRequired = configRequired || f.Name == "config"
	})
	config, err := getConfig(configFlag, configRequired)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read config")
	}
	if err := applyFlags(&config); err != nil {
		log.Fatal().Err(err).Msg("Invalid flag")
	}

	setupLogger(config.LogFile)

	if err := config.validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ok, err := run(ctx, config, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Benchmark failed")
	}
	if !ok {
		os.Exit(1)
	}
}

// run executes the benchmark and writes the summary to w.
// It reports whether the cache advantage was verified.
func run(ctx context.Context, config Config, w io.Writer) (bool, error) {
	var collector *metrics.Collector
	if config.MetricsAddr != "" {
		collector = serveMetrics(config.MetricsAddr)
	}

	baseURL := config.Server
	if config.Proxy.Enabled {
		proxyURL, closeProxy, err := startProxy(config)
		if err != nil {
			return false, err
		}
		defer closeProxy()
		baseURL = proxyURL
	}

	client, err := fhir.NewClient(fhir.Config{
		BaseURL: baseURL,
		Timeout: config.Timeout,
	})
	if err != nil {
		return false, err
	}
	if err := client.RegisterInterceptor(fhir.NewLoggingInterceptor(&log.Logger, config.LogHeaders)); err != nil {
		return false, err
	}

	parameters := surnames.ReadFile(config.Surnames)
	log.Info().Int("surnames", len(parameters)).Str("server", baseURL).Msg("Starting benchmark")

	benchmark := cachebench.New(cachebench.Config{
		Metrics:     collector,
		Concurrency: config.Concurrency,
		RateLimit:   config.RateLimit,
	})
	result, err := benchmark.Run(ctx, client, parameters, config.Repeats, config.NoCache)
	if err != nil {
		return false, err
	}
	cachebench.RenderSummary(w, result)
	return result.Verify(), nil
}

// startProxy starts the caching proxy in front of the configured server and
// returns the base URL to query it with.
func startProxy(config Config) (string, func(), error) {
	originURL, err := url.Parse(config.Server)
	if err != nil {
		return "", nil, fmt.Errorf("parse server url: %w", err)
	}

	var provider cache.Provider
	if config.Proxy.DB == "memory" {
		size := config.Proxy.Size
		if size == 0 {
			size = cache.DefaultMemCacheSize
		}
		provider, err = cache.NewMemCache(size)
	} else {
		provider, err = cache.NewSQLiteCache(config.Proxy.DB)
	}
	if err != nil {
		return "", nil, fmt.Errorf("open cache: %w", err)
	}

	listener, err := net.Listen("tcp", config.Proxy.Addr)
	if err != nil {
		provider.Close()
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	p := proxy.New(proxy.Config{Cache: provider, OriginURL: *originURL, Rules: config.Proxy.Rules})
	server := &http.Server{Handler: p.Handler()}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Proxy stopped")
		}
	}()
	log.Info().Msgf("Proxying %s to %s", listener.Addr(), originURL.Host)

	proxyURL := url.URL{Scheme: "http", Host: listener.Addr().String(), Path: originURL.Path}
	return proxyURL.String(), func() {
		server.Close()
		provider.Close()
	}, nil
}

func serveMetrics(addr string) *metrics.Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Info().Msgf("Serving metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, r); err != nil {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return collector
}

// setupLogger logs to stdout and, if specified, to a rotating log file.
func setupLogger(logFile string) {
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if logFile != "" {
		logOutputs = append(logOutputs, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 3,
		})
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()
}

// applyFlags overrides config values with the flags set on the command line.
func applyFlags(config *Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "server":
			config.Server = serverFlag
		case "surnames":
			config.Surnames = surnamesFlag
		case "repeats":
			config.Repeats = repeatsFlag
		case "no-cache":
			config.NoCache, err = parseIndices(noCacheFlag)
		case "timeout":
			config.Timeout, err = time.ParseDuration(timeoutFlag)
		case "concurrency":
			config.Concurrency = concurrencyFlag
		case "rate":
			config.RateLimit = rateFlag
		case "proxy":
			config.Proxy.Enabled = proxyFlag
		case "db":
			config.Proxy.DB = dbFilenameFlag
		case "metrics":
			config.MetricsAddr = metricsAddrFlag
		case "log-file":
			config.LogFile = logFilenameFlag
		case "log-headers":
			config.LogHeaders = logHeadersFlag
		}
	})
	return err
}

// parseIndices parses a comma separated list of iteration numbers.
func parseIndices(s string) ([]int, error) {
	indices := make([]int, 0)
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		i, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("iteration %q: %w", field, err)
		}
		indices = append(indices, i)
	}
	return indices, nil
}
