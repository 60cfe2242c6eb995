package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const contentTypeFhirJson = "application/fhir+json"

var (
	ErrInterceptorRegistered    = errors.New("interceptor already registered")
	ErrInterceptorNotRegistered = errors.New("interceptor not registered")
)

// Interceptor hooks into every round trip made by the client.
// Implementations must be comparable (usually a pointer),
// since they are identified by equality when unregistering.
type Interceptor interface {
	// InterceptRequest is called before the request is sent.
	// Returning an error aborts the request.
	InterceptRequest(req *http.Request) error
	// InterceptResponse is called once the full response has been received.
	// Elapsed is the time from sending the request until the body was read.
	InterceptResponse(res *http.Response, elapsed time.Duration) error
}

// StatusError is returned when the server responded with a non-2xx status.
// The round trip itself completed.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with %s", e.URL, e.Status)
}

// DecodeError is returned when the response could not be read as a bundle.
// The round trip itself completed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode bundle: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsCompleted reports whether the error happened after a response was received.
func IsCompleted(err error) bool {
	var statusErr *StatusError
	var decodeErr *DecodeError
	return errors.As(err, &statusErr) || errors.As(err, &decodeErr)
}

// IsTimeout reports whether the error was caused by a request timeout.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type Config struct {
	// Base URL of the FHIR server, e.g. http://hapi.fhir.org/baseR4
	BaseURL string
	// Timeout for a single request, including reading the body.
	// Zero means no timeout.
	Timeout time.Duration
	// HTTP client to use. A new client is created if nil.
	HTTPClient *http.Client
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Client is a minimal FHIR REST client for resource searches.
// Registering and unregistering interceptors waits for in-flight requests,
// so no request is ever sent while the interceptor chain is changing.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.RWMutex
	interceptors []Interceptor
}

func NewClient(config Config) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if config.Timeout > 0 {
		c := *httpClient
		c.Timeout = config.Timeout
		httpClient = &c
	}

	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        logger.With().Str("fhir", baseURL.String()).Logger(),
	}, nil
}

// RegisterInterceptor appends the interceptor to the chain.
func (c *Client) RegisterInterceptor(i Interceptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, registered := range c.interceptors {
		if registered == i {
			return ErrInterceptorRegistered
		}
	}
	c.interceptors = append(c.interceptors, i)
	return nil
}

// UnregisterInterceptor removes the interceptor, leaving the others in place.
func (c *Client) UnregisterInterceptor(i Interceptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, registered := range c.interceptors {
		if registered == i {
			c.interceptors = append(c.interceptors[:idx:idx], c.interceptors[idx+1:]...)
			return nil
		}
	}
	return ErrInterceptorNotRegistered
}

// Interceptors returns a copy of the current chain.
func (c *Client) Interceptors() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interceptor(nil), c.interceptors...)
}

// SearchPatients searches Patient resources matching the family name.
func (c *Client) SearchPatients(ctx context.Context, family string) (*Bundle, error) {
	return c.Search(ctx, "Patient", url.Values{"family": []string{family}})
}

// Search runs a search on the resource type and returns the resulting bundle.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*Bundle, error) {
	u := *c.baseURL
	u.Path = u.Path + "/" + resourceType
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentTypeFhirJson)

	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var bundle Bundle
	if err := json.NewDecoder(res.Body).Decode(&bundle); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if bundle.ResourceType != "Bundle" {
		return nil, &DecodeError{Err: fmt.Errorf("expected Bundle, got resource type %q", bundle.ResourceType)}
	}
	return &bundle, nil
}

// do executes the request through the interceptor chain.
// The returned response body has been read into memory.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, i := range c.interceptors {
		if err := i.InterceptRequest(req); err != nil {
			return nil, fmt.Errorf("intercept request: %w", err)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	elapsed := time.Since(start)
	res.Body = io.NopCloser(bytes.NewReader(body))

	c.log.Trace().
		Str("url", req.URL.String()).
		Int("status", res.StatusCode).
		Dur("elapsed", elapsed).
		Int("bytes", len(body)).
		Msg("Round trip complete")

	for _, i := range c.interceptors {
		if err := i.InterceptResponse(res, elapsed); err != nil {
			return nil, fmt.Errorf("intercept response: %w", err)
		}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			Status:     res.Status,
			URL:        req.URL.String(),
		}
	}
	return res, nil
}
