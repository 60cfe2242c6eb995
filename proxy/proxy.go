// Package proxy implements the caching reverse proxy that sits between the
// benchmark client and the FHIR origin. Responses are stored according to
// RFC 9111 and every response carries a Cache-Status header (RFC 9211).
package proxy

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/always-cache/cachebench/cache"
	cachekey "github.com/always-cache/cachebench/pkg/cache-key"
	responsetransformer "github.com/always-cache/cachebench/pkg/response-transformer"
	tee "github.com/always-cache/cachebench/pkg/response-writer-tee"
	"github.com/always-cache/cachebench/rfc9111"
	"github.com/always-cache/cachebench/rfc9211"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Storage for cache entries.
	Cache cache.Provider
	// URL of the origin server. Only scheme and host are used.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation,
	// e.g. when the origin URL is just an IP address.
	OriginHost string
	// Rules for setting caching headers on origin responses.
	Rules responsetransformer.Rules
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

type Proxy struct {
	cache        cache.Provider
	keyer        cachekey.CacheKeyer
	log          zerolog.Logger
	reverseproxy httputil.ReverseProxy
}

// New creates a proxy for the origin in config.
func New(config Config) *Proxy {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	logger = logger.With().Str("origin", config.OriginURL.Host).Logger()

	p := &Proxy{
		cache: config.Cache,
		keyer: cachekey.NewCacheKeyer(config.OriginURL.Scheme + "://" + config.OriginURL.Host),
		log:   logger,
	}

	host := config.OriginURL.Host
	hostHeader := host
	transport := http.DefaultTransport
	if config.OriginHost != "" {
		hostHeader = config.OriginHost
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: config.OriginHost,
			},
		}
	}

	p.reverseproxy = httputil.ReverseProxy{
		Director:       createDirector(config.OriginURL.Scheme, host, hostHeader),
		Transport:      transport,
		ModifyResponse: modifyResponse(config.Rules),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.getLogger(r).Error().Err(err).Msg("Could not fetch response from origin")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return p
}

// Handler returns the proxy wrapped in request logging middleware.
func (p *Proxy) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(p.log))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Trace().
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))
	r.Handle("/*", p)
	return r
}

// ServeHTTP implements the http.Handler interface.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer p.recover(w, r)

	var cs rfc9211.CacheStatus
	entries := p.getResponsesForUri(r)
	if len(entries) == 0 {
		cs.Forward(rfc9211.FwdReasonUriMiss)
	}
	for _, ce := range entries {
		stored := p.createStoredResponse(r, ce)
		if stored == nil {
			cs.Forward(rfc9211.FwdReasonMiss)
			continue
		}
		res, reason, err := rfc9111.ConstructReusableResponse(r, stored, ce.RequestedAt, ce.ReceivedAt)
		if err != nil {
			p.getLogger(r).Error().Err(err).Msg("Could not determine reusability")
			reason = rfc9211.FwdReasonMiss
		}
		if reason == "" {
			cs.Hit()
			cs.TimeToLive = int(rfc9111.TimeToLive(stored, ce.RequestedAt, ce.ReceivedAt) / time.Second)
			p.sendStoredResponse(w, r, res, cs)
			return
		}
		// a request directive outranks what the other variants would say
		if cs.FwdReason != rfc9211.FwdReasonRequest {
			cs.Forward(reason)
		}
	}
	p.proxy(w, r, cs)
}

// recover answers with a 502 if handling the request panicked before anything was written.
func (p *Proxy) recover(w http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		p.getLogger(r).WithLevel(zerolog.PanicLevel).Interface("error", err).Msg("Panic in proxy handler")
		http.Error(w, "Proxy error", http.StatusBadGateway)
	}
}

func (p *Proxy) sendStoredResponse(w http.ResponseWriter, r *http.Request, res *http.Response, cs rfc9211.CacheStatus) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.Header().Add("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if r.Method != http.MethodHead && res.Body != nil {
		bytesWritten, err := io.Copy(w, res.Body)
		if err != nil {
			p.getLogger(r).Error().Err(err).Msg("Could not write response body to client")
		}
		p.getLogger(r).Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
	}
	p.logRequest(r, res.StatusCode, cs)
}

func (p *Proxy) createStoredResponse(r *http.Request, ce cache.Entry) *http.Response {
	originalReq, err := p.keyer.GetRequestFromKey(ce.Key)
	if err != nil {
		p.getLogger(r).Error().Err(err).Msg("Could not get request from key")
		return nil
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(ce.Bytes)), originalReq)
	if err != nil {
		p.getLogger(r).Error().Err(err).Msg("Could not create response")
		return nil
	}
	return res
}

func (p *Proxy) getResponsesForUri(r *http.Request) []cache.Entry {
	keyUriPrefix := p.keyer.GetKeyPrefix(r)
	entries, err := p.cache.All(keyUriPrefix)
	if err != nil {
		p.getLogger(r).Error().Err(err).Msg("Could not retrieve from cache")
		return nil
	}
	p.getLogger(r).Trace().Str("key", keyUriPrefix).Msgf("Found %d cache entries", len(entries))
	return entries
}

// proxy forwards the request to the origin and stores the response if allowed.
func (p *Proxy) proxy(w http.ResponseWriter, r *http.Request, cs rfc9211.CacheStatus) {
	mayStore := false
	rwtee := tee.NewResponseSaver(w)
	rwtee.OnHeader(func(statusCode int, header, downstream http.Header) {
		res := &http.Response{StatusCode: statusCode, Header: header, Request: r}
		noStore, err := rfc9111.MustNotStore(res)
		if err != nil {
			p.getLogger(r).Debug().Err(err).Msg("Not storing incomplete response")
		}
		mayStore = r.Method == http.MethodGet && !noStore && !rfc9111.GetExpiration(res).IsZero()
		cs.Stored = mayStore
		downstream.Add("Cache-Status", cs.String())
	})
	p.reverseproxy.ServeHTTP(rwtee, rfc9111.GetForwardRequest(r))

	res := &http.Response{StatusCode: rwtee.StatusCode(), Header: rwtee.Header(), Request: r}
	p.invalidate(r, rfc9111.GetInvalidateURIs(r, res))
	if mayStore {
		if err := p.writeCache(rwtee, r, res); err != nil {
			p.getLogger(r).Error().Err(err).Msg("Could not write to cache")
		}
	}
	p.logRequest(r, rwtee.StatusCode(), cs)
}

func (p *Proxy) writeCache(rw *tee.ResponseSaver, r *http.Request, res *http.Response) error {
	keyPrefix := p.keyer.GetKeyPrefix(r)
	key := p.keyer.AddVaryKeys(keyPrefix, r, res)
	exp := rfc9111.GetExpiration(res)
	p.getLogger(r).Trace().Msgf("Writing to cache: %v %v", key, exp)
	return p.cache.Put(cache.Entry{
		Key:         key,
		Expires:     exp,
		RequestedAt: rw.CreatedAt,
		ReceivedAt:  time.Now(),
		Bytes:       rw.Response(),
	})
}

// invalidate purges all stored variants of the given request URIs.
func (p *Proxy) invalidate(r *http.Request, uris []string) {
	for _, uri := range uris {
		u, err := url.ParseRequestURI(uri)
		if err != nil {
			continue
		}
		prefix := p.keyer.GetKeyPrefix(&http.Request{Method: http.MethodGet, URL: u, Header: http.Header{}})
		entries, err := p.cache.All(prefix)
		if err != nil {
			p.getLogger(r).Error().Err(err).Msg("Could not retrieve entries to invalidate")
			continue
		}
		for _, ce := range entries {
			if err := p.cache.Purge(ce.Key); err != nil {
				p.getLogger(r).Error().Err(err).Str("key", ce.Key).Msg("Could not invalidate")
			}
		}
		p.getLogger(r).Debug().Str("uri", uri).Msgf("Invalidated %d entries", len(entries))
	}
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}

// modifyResponse applies the rules to origin responses and sets the Date of
// responses that lack one, as per https://www.rfc-editor.org/rfc/rfc9110#section-6.6.1-8
func modifyResponse(rules responsetransformer.Rules) func(*http.Response) error {
	return func(res *http.Response) error {
		if res.Header.Get("Date") == "" {
			res.Header.Set("Date", rfc9111.ToHttpDate(time.Now()))
		}
		return rules.Apply(res)
	}
}

// getLogger returns the request scoped logger if the request went through Handler.
func (p *Proxy) getLogger(r *http.Request) *zerolog.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &p.log
}

func (p *Proxy) logRequest(r *http.Request, statusCode int, cs rfc9211.CacheStatus) {
	isHit := 0
	if cs.IsHit() {
		isHit = 1
	}
	p.getLogger(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("code", statusCode).
		Str("status", string(cs.Status)).
		Str("fwd", string(cs.FwdReason)).
		Bool("stored", cs.Stored).
		Int("ttl", cs.TimeToLive).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
