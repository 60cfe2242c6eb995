// Package rfc9211 implements the Cache-Status HTTP response header field.
package rfc9211

import (
	"fmt"
	"strconv"
	"strings"
)

// CacheName identifies the local proxy in the Cache-Status header.
const CacheName = "CacheBench"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

// §  2.2. The fwd parameter
const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"
	// The request method's semantics require the request to be forwarded.
	FwdReasonMethod FwdReason = "method"
	// The cache did not contain any responses that matched the request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// The cache contained a response that matched the request URI,
	// but it could not select a response based upon this request's
	// header fields and stored Vary header fields.
	FwdReasonVaryMiss FwdReason = "vary-miss"
	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
	// The cache was able to select a fresh response for the request,
	// but the request's semantics (e.g., Cache-Control request directives)
	// did not allow its use.
	FwdReasonRequest FwdReason = "request"
	// The cache was able to select a response for the request, but it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus is one member of the Cache-Status list.
type CacheStatus struct {
	Cache      string
	Status     Status
	FwdReason  FwdReason
	Stored     bool
	TimeToLive int
	Detail     string
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// IsHit reports whether the response was served from the cache.
func (cs CacheStatus) IsHit() bool {
	return cs.Status == StatusHit
}

func (cs CacheStatus) String() string {
	name := cs.Cache
	if name == "" {
		name = CacheName
	}
	status := fmt.Sprintf("%s; %s", name, cs.Status)
	if cs.Status == StatusFwd && cs.FwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.FwdReason)
	}
	if cs.Stored {
		status = status + "; stored"
	}
	if cs.TimeToLive != 0 {
		status = fmt.Sprintf("%s; ttl=%d", status, cs.TimeToLive)
	}
	if cs.Detail != "" {
		status = status + "; detail=" + cs.Detail
	}
	return status
}

// Parse parses the Cache-Status header values of a response.
// Members are returned in header order, i.e. the cache closest to the
// origin server first.
func Parse(values []string) []CacheStatus {
	statuses := make([]CacheStatus, 0)
	for _, value := range values {
		for _, member := range strings.Split(value, ",") {
			if cs, ok := parseMember(member); ok {
				statuses = append(statuses, cs)
			}
		}
	}
	return statuses
}

// Last returns the member added by the cache closest to the client.
func Last(values []string) (CacheStatus, bool) {
	statuses := Parse(values)
	if len(statuses) == 0 {
		return CacheStatus{}, false
	}
	return statuses[len(statuses)-1], true
}

func parseMember(member string) (CacheStatus, bool) {
	params := strings.Split(member, ";")
	cs := CacheStatus{Cache: strings.Trim(strings.TrimSpace(params[0]), "\"")}
	if cs.Cache == "" {
		return cs, false
	}
	for _, param := range params[1:] {
		name, value, _ := strings.Cut(strings.TrimSpace(param), "=")
		switch strings.ToLower(name) {
		case "hit":
			cs.Hit()
		case "fwd":
			cs.Forward(FwdReason(strings.Trim(value, "\"")))
		case "stored":
			cs.Stored = true
		case "ttl":
			cs.TimeToLive, _ = strconv.Atoi(value)
		case "detail":
			cs.Detail = strings.Trim(value, "\"")
		}
	}
	return cs, true
}
