package rfc9111

import (
	"net/http"

	"github.com/always-cache/cachebench/rfc9211"
)

// §  4.  Constructing Responses from Caches
//
// mustNotReuse returns the forward reason if the stored response MUST NOT
// be used to satisfy the request, or an empty reason if it may be used.
func mustNotReuse(req *http.Request, res *http.Response, a ages) rfc9211.FwdReason {
	resCacheControl := ParseCacheControl(res.Header.Values("Cache-Control"))
	// §     When presented with a request, a cache MUST NOT reuse a stored
	// §     response unless:
	// §
	// §     *  the presented target URI (Section 7.1 of [HTTP]) and that of the
	// §        stored response match, and
	if res.Request.URL == nil || req.URL.String() != res.Request.URL.String() {
		return rfc9211.FwdReasonUriMiss
	}
	// §     *  the request method associated with the stored response allows it
	// §        to be used for the presented request, and
	if res.Request.Method != req.Method && !(req.Method == http.MethodHead && res.Request.Method == http.MethodGet) {
		return rfc9211.FwdReasonMethod
	}
	// §     *  request header fields nominated by the stored response (if any)
	// §        match those presented (see Section 4.1), and
	if !headerFieldsMatch(req, res.Request, res) {
		return rfc9211.FwdReasonVaryMiss
	}
	// a fresh response is available, but the request asks for validation
	if requestPrefersValidation(req) {
		return rfc9211.FwdReasonRequest
	}
	// §     *  the stored response does not contain the no-cache directive
	// §        (Section 5.2.2.4), unless it is successfully validated
	// §        (Section 4.3), and
	if resCacheControl.HasDirective("no-cache") {
		return rfc9211.FwdReasonStale
	}
	// §     *  the stored response is one of the following:
	// §
	// §        -  fresh (see Section 4.2), or
	// §
	// §        -  allowed to be served stale (see Section 4.2.4), or
	// §
	// §        -  successfully validated (see Section 4.3).
	if !a.isFresh(res) {
		return rfc9211.FwdReasonStale
	}
	return ""
}

func constructResponse(storedResponse *http.Response, a ages) *http.Response {
	res := &http.Response{
		Status:        storedResponse.Status,
		StatusCode:    storedResponse.StatusCode,
		Proto:         storedResponse.Proto,
		ProtoMajor:    storedResponse.ProtoMajor,
		ProtoMinor:    storedResponse.ProtoMinor,
		Header:        storedResponse.Header.Clone(),
		Body:          storedResponse.Body,
		ContentLength: storedResponse.ContentLength,
		Request:       storedResponse.Request,
	}

	// §     When a stored response is used to satisfy a request without
	// §     validation, a cache MUST generate an Age header field (Section 5.1),
	// §     replacing any present in the response with a value equal to the
	// §     stored response's current_age; see Section 4.2.3.
	res.Header.Set("Age", toDeltaSeconds(a.current_age(storedResponse)))

	return res
}

// §     A cache MUST write through requests with methods that are unsafe
// §     (Section 9.2.1 of [HTTP]) to the origin server; i.e., a cache is not
// §     allowed to generate a reply to such a request before having forwarded
// §     the request and having received a corresponding response.
func mustWriteThrough(req *http.Request) bool {
	return UnsafeRequest(req)
}

// UnsafeRequest reports whether the request method is unsafe (Section 9.2.1 of [HTTP]).
func UnsafeRequest(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}
