package rfc9111

import (
	"net/http"
	"strings"
	"time"
)

// CacheControl implements parsing of the "Cache-Control" header (/field).
//
// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. Cache directives are unidirectional, in that the
// §  presence of a directive in a request does not imply that the same directive is
// §  present or copied in the response.
// §
// §  [...] Cache directives are identified by a token, to be compared
// §  case-insensitively, and have an optional argument that can use both
// §  token and quoted-string syntax.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
type CacheControl struct {
	directives map[string]string
}

// Get returns the value (/argument) of the specified directive,
// along with a boolean indicating whether this directive is present
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[strings.ToLower(directive)]
	return val, ok
}

// HasDirective returns whether the specified directive is present
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// Empty reports whether no directives are present.
func (c CacheControl) Empty() bool {
	return len(c.directives) == 0
}

// ParseCacheControl takes Cache-Control headers as a slice of strings
// and returns an instance of `CacheControl`.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		// "#" means comma-separated list
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			name, arg, _ := strings.Cut(directive, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			// §  When there is more than one value present for a given directive
			// §  [...] the first occurrence should be used
			if _, seen := m[name]; seen {
				continue
			}
			// §  [...] argument that can use both token and quoted-string syntax. [...]
			m[name] = strings.Trim(strings.TrimSpace(arg), "\"")
		}
	}
	return CacheControl{m}
}

// MaxAge returns "max-age" as a duration, along with a boolean indicating
// whether the "max-age" directive was present with a valid argument.
//
// §  5.2.1.1. max-age (request)
// §
// §  The max-age request directive indicates that the client prefers a
// §  response whose age is less than or equal to the specified number of
// §  seconds.
// §
// §  5.2.2.1. max-age (response)
// §
// §  The max-age response directive indicates that the response is to be considered
// §  stale after its age is greater than the specified number of seconds.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// §  5.2.2.10.  s-maxage
// §
// §     The "s-maxage" response directive indicates that, for a shared cache,
// §     the maximum age specified by this directive overrides the maximum age
// §     specified by either the max-age directive or the Expires header
// §     field.
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// getDeltaSeconds returns the "delta-seconds" as `time.Duration`,
// as well as a boolean indicating whether the directive was set.
//
// Examples:
// directive    -> 0,  false
// directive=0  -> 0,  true
// directive=60 -> 60, true
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	if secondsStr, ok := c.Get(directive); ok {
		return deltaSeconds(secondsStr)
	}
	return 0, false
}

// §  5.2.1.4.  no-cache (request)
// §
// §     The no-cache request directive indicates that the client prefers a
// §     stored response not be used to satisfy the request without successful
// §     validation on the origin server.
//
// A request max-age of zero is treated the same.
func requestPrefersValidation(req *http.Request) bool {
	cc := ParseCacheControl(req.Header.Values("Cache-Control"))
	if cc.HasDirective("no-cache") {
		return true
	}
	if maxAge, ok := cc.MaxAge(); ok && maxAge == 0 {
		return true
	}
	return cc.Empty() && pragmaNoCache(req.Header)
}
