package fhir

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingInterceptor logs every request and response passing through the client.
type LoggingInterceptor struct {
	log zerolog.Logger
	// Log request and response headers as well.
	LogHeaders bool
}

// NewLoggingInterceptor creates a logging interceptor.
// The global zerolog logger is used if logger is nil.
func NewLoggingInterceptor(logger *zerolog.Logger, logHeaders bool) *LoggingInterceptor {
	if logger == nil {
		logger = &log.Logger
	}
	return &LoggingInterceptor{
		log:        *logger,
		LogHeaders: logHeaders,
	}
}

func (l *LoggingInterceptor) InterceptRequest(req *http.Request) error {
	evt := l.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String())
	if l.LogHeaders {
		evt = evt.Interface("headers", req.Header)
	}
	evt.Msg("Client request")
	return nil
}

func (l *LoggingInterceptor) InterceptResponse(res *http.Response, elapsed time.Duration) error {
	evt := l.log.Debug().
		Int("status", res.StatusCode).
		Dur("elapsed", elapsed)
	if res.Request != nil {
		evt = evt.Str("url", res.Request.URL.String())
	}
	if cs := res.Header.Get("Cache-Status"); cs != "" {
		evt = evt.Str("cacheStatus", cs)
	}
	if l.LogHeaders {
		evt = evt.Interface("headers", res.Header)
	}
	evt.Msg("Client response")
	return nil
}
