package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/always-cache/cachebench/cache"
	"github.com/always-cache/cachebench/origin"
	surnames "github.com/always-cache/cachebench/pkg/surname-reader"
	"github.com/always-cache/cachebench/proxy"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	portFlag           int
	proxyPortFlag      int
	latencyFlag        time.Duration
	maxAgeFlag         time.Duration
	surnamesFlag       string
	perNameFlag        int
	dbFilenameFlag     string
	verbosityTraceFlag bool
)

func init() {
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.IntVar(&proxyPortFlag, "proxy-port", 0, "Also serve the origin through the caching proxy on this port")
	flag.DurationVar(&latencyFlag, "latency", 200*time.Millisecond, "Delay added to every search")
	flag.DurationVar(&maxAgeFlag, "max-age", time.Hour, "Freshness lifetime of search responses (0 for no-store)")
	flag.StringVar(&surnamesFlag, "surnames", "testdata/surnames.txt", "Family names of the generated patients")
	flag.IntVar(&perNameFlag, "per-name", 3, "Patients generated per family name")
	flag.StringVar(&dbFilenameFlag, "db", "memory", "Proxy cache DB file name (use 'memory' for in-memory cache)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	o := origin.New(origin.Config{
		Latency:  latencyFlag,
		MaxAge:   maxAgeFlag,
		Patients: origin.GeneratePatients(surnames.ReadFile(surnamesFlag), perNameFlag),
	})
	addr := fmt.Sprintf(":%d", portFlag)

	if proxyPortFlag != 0 {
		var provider cache.Provider
		var err error
		if dbFilenameFlag == "memory" {
			provider, err = cache.NewMemCache(cache.DefaultMemCacheSize)
		} else {
			provider, err = cache.NewSQLiteCache(dbFilenameFlag)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open cache")
		}
		p := proxy.New(proxy.Config{
			Cache:     provider,
			OriginURL: url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", portFlag)},
		})
		go func() {
			log.Info().Msgf("Proxying port %d to port %d", proxyPortFlag, portFlag)
			if err := http.ListenAndServe(fmt.Sprintf(":%d", proxyPortFlag), p.Handler()); err != nil {
				log.Fatal().Err(err).Msg("Proxy stopped")
			}
		}()
	}

	log.Info().Msgf("Serving mock FHIR origin on %s (latency %s)", addr, latencyFlag)
	if err := http.ListenAndServe(addr, o.Handler()); err != nil {
		panic(err)
	}
}
