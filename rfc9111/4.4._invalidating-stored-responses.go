package rfc9111

import (
	"net/http"
	"net/url"
)

// GetInvalidateURIs returns the request URIs whose stored responses must be
// invalidated after the response to the request was received.
//
// §  4.4.  Invalidating Stored Responses
// §
// §     Because unsafe request methods (Section 9.2.1 of [HTTP]) such as PUT,
// §     POST, or DELETE have the potential for changing state on the origin
// §     server, intervening caches are required to invalidate stored
// §     responses to keep their contents up to date.
// §
// §     A cache MUST invalidate the target URI (Section 7.1 of [HTTP]) when it
// §     receives a non-error status code in response to an unsafe request
// §     method (including methods whose safety is unknown).
// §
// §     A cache MAY invalidate other URIs when it receives a non-error status
// §     code in response to an unsafe request method.  In particular, the
// §     URI(s) in the Location and Content-Location response header fields
// §     (if present) are candidates for invalidation; other URIs might be
// §     discovered through mechanisms not specified in this document.
// §     However, a cache MUST NOT trigger an invalidation under these
// §     conditions if the origin (Section 4.3.1 of [HTTP]) of the URI to be
// §     invalidated differs from that of the target URI.
func GetInvalidateURIs(req *http.Request, res *http.Response) []string {
	uris := make([]string, 0)
	if !UnsafeRequest(req) || res.StatusCode < 200 || res.StatusCode > 399 {
		return uris
	}
	uris = append(uris, req.URL.RequestURI())
	for _, field := range []string{"Location", "Content-Location"} {
		value := res.Header.Get(field)
		if value == "" {
			continue
		}
		u, err := req.URL.Parse(value)
		if err != nil || !sameOrigin(req, u) {
			continue
		}
		uris = append(uris, u.RequestURI())
	}
	return uris
}

// sameOrigin compares u with the target of a request received by a server,
// whose URL usually has no scheme or host.
func sameOrigin(req *http.Request, u *url.URL) bool {
	if u.Host == "" {
		return true
	}
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	return u.Host == host
}
