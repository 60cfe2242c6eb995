package cachekey

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/always-cache/cachebench/rfc9111"
)

var ErrMalformedKey = errors.New("malformed cache key")

const (
	originSeparator = ":"
	methodSeparator = ":"
	varySeparator   = "\t"
	varyLine        = "\n"
)

type CacheKeyer struct {
	// Unique identifier for the origin.
	// Usually this should be the origin - well - origin.
	OriginId string
	// Cache key prefix for this origin
	OriginPrefix string
}

func NewCacheKeyer(originId string) CacheKeyer {
	return CacheKeyer{
		OriginId:     originId,
		OriginPrefix: originId + originSeparator,
	}
}

// GetKeyPrefix returns the cache key for a request without the vary headers (i.e. a key prefix).
// The returned key is suitable for finding all stored response variants for a particular request.
// HEAD requests share the key of GET, so a stored GET response can answer them.
// If the request has a `Cache-Key` header, that value is included in the key prefix.
func (c CacheKeyer) GetKeyPrefix(r *http.Request) string {
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	key := c.OriginPrefix + method + methodSeparator + r.URL.RequestURI() + varySeparator
	if ck := r.Header.Get("Cache-Key"); ck != "" {
		key += ck
	}
	return key
}

// AddVaryKeys returns the full cache key (including vary headers) based on a previously generated
// cache key prefix and the request and response involved.
func (c CacheKeyer) AddVaryKeys(prefix string, req *http.Request, res *http.Response) string {
	key := prefix
	for _, name := range rfc9111.GetListHeader(res.Header, "Vary") {
		if values := rfc9111.GetListHeader(req.Header, name); len(values) > 0 {
			key += varyLine + strings.ToLower(name) + ": " + strings.Join(values, ", ")
		}
	}
	return key
}

// GetRequestFromKey generates a caching-wise equal request to the one that resulted in the
// provided key. This means it takes vary headers into account.
// The request URL holds only the request URI, like requests received by a server.
func (c CacheKeyer) GetRequestFromKey(key string) (*http.Request, error) {
	if !strings.HasPrefix(key, c.OriginPrefix) {
		return nil, fmt.Errorf("key %q does not belong to origin %s", key, c.OriginId)
	}
	keyNoOrigin := strings.TrimPrefix(key, c.OriginPrefix)
	keyNoVary, _, found := strings.Cut(keyNoOrigin, varySeparator)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, key)
	}
	method, uri, found := strings.Cut(keyNoVary, methodSeparator)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, key)
	}
	req, err := http.NewRequest(method, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.GetVaryHeaders(key)
	return req, nil
}

// GetVaryHeaders creates a http.Header instance containing all the vary keys included in a key.
func (c CacheKeyer) GetVaryHeaders(key string) http.Header {
	header := make(http.Header)
	lines := strings.Split(key, varyLine)
	for _, line := range lines[1:] {
		if name, value, ok := strings.Cut(line, ": "); ok {
			header.Add(name, value)
		}
	}
	return header
}
