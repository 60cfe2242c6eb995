// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) needed by
// a shared cache that stores and reuses fresh responses.
//
// Files are named after the sections of the RFC they implement, and the
// relevant RFC text is quoted with a leading §.
// Validation (conditional requests) is not implemented: a response that
// would need validation is reported as not reusable.
package rfc9111

import (
	"errors"
	"net/http"
	"time"

	"github.com/always-cache/cachebench/rfc9211"
)

var (
	ErrNoHeader     = errors.New("response headers empty")
	ErrNoStatusCode = errors.New("response status code empty")
	ErrNoRequest    = errors.New("response request empty")
	ErrNoMethod     = errors.New("response request method empty")
)

// MustNotStore returns a boolean indicating if a particular origin response
// MUST NOT be stored in the cache.
//
// The response may be a "real" response from e.g. http.Client.Do(), OR a Response
// struct with the following fields set:
//
// - Header
// - StatusCode
// - Request with at least .Method set
//
// An error is returned if any of these fields are missing.
func MustNotStore(originResponse *http.Response) (bool, error) {
	if err := checkResponse(originResponse); err != nil {
		return true, err
	}
	return mustNotStore(originResponse.Request, originResponse), nil
}

// ConstructReusableResponse returns a response that can be sent downstream,
// if the stored response may be used to satisfy the client request.
// Otherwise it returns the reason for forwarding the request as per RFC 9211.
//
// requestTime and responseTime are the clock values at the time the stored
// response was requested from and received by the cache.
// The stored response must carry the request that caused it to be stored.
func ConstructReusableResponse(clientRequest *http.Request, storedResponse *http.Response, requestTime, responseTime time.Time) (*http.Response, rfc9211.FwdReason, error) {
	if err := checkResponse(storedResponse); err != nil {
		return nil, rfc9211.FwdReasonMiss, err
	}
	if mustWriteThrough(clientRequest) {
		return nil, rfc9211.FwdReasonMethod, nil
	}
	a := ages{requestTime: requestTime, responseTime: responseTime, now: time.Now()}
	if reason := mustNotReuse(clientRequest, storedResponse, a); reason != "" {
		return nil, reason, nil
	}
	return constructResponse(storedResponse, a), "", nil
}

// TimeToLive returns the remaining freshness lifetime of a response
// that was received at responseTime.
func TimeToLive(res *http.Response, requestTime, responseTime time.Time) time.Duration {
	a := ages{requestTime: requestTime, responseTime: responseTime, now: time.Now()}
	return freshness_lifetime(res) - a.current_age(res)
}

func checkResponse(res *http.Response) error {
	switch {
	case len(res.Header) == 0:
		return ErrNoHeader
	case res.StatusCode == 0:
		return ErrNoStatusCode
	case res.Request == nil:
		return ErrNoRequest
	case res.Request.Method == "":
		return ErrNoMethod
	}
	return nil
}
