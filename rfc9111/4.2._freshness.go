package rfc9111

import (
	"net/http"
	"time"
)

// §  4.2.  Freshness
// §
// §     A "fresh" response is one whose age has not yet exceeded its
// §     freshness lifetime.  Conversely, a "stale" response is one where it
// §     has.
// §
// §     The calculation to determine if a response is fresh is:
// §
// §        response_is_fresh = (freshness_lifetime > current_age)
func (a ages) isFresh(res *http.Response) bool {
	return freshness_lifetime(res) > a.current_age(res)
}

// GetExpiration returns the time at which a response received now stops
// being fresh. The zero time is returned if it has no explicit lifetime.
func GetExpiration(res *http.Response) time.Time {
	if ttl := freshness_lifetime(res); ttl > 0 {
		return time.Now().Add(ttl)
	}
	return time.Time{}
}

// §  4.2.1.  Calculating Freshness Lifetime
func freshness_lifetime(res *http.Response) time.Duration {
	resCacheControl := ParseCacheControl(res.Header.Values("Cache-Control"))
	// §     *  If the cache is shared and the s-maxage response directive
	// §        (Section 5.2.2.10) is present, use its value, or
	if val, ok := resCacheControl.SMaxAge(); ok {
		return val
	}
	// §     *  If the max-age response directive (Section 5.2.2.1) is present,
	// §        use its value, or
	if val, ok := resCacheControl.MaxAge(); ok {
		return val
	}
	// §     *  If the Expires response header field (Section 5.3) is present, use
	// §        its value minus the value of the Date response header field (using
	// §        the time the message was received if it is not present, as per
	// §        Section 6.6.1 of [HTTP]), or
	if expires, ok := getExpires(res); ok {
		date := time.Now()
		if d, err := HttpDate(res.Header.Get("Date")); err == nil {
			date = d
		}
		return expires.Sub(date)
	}
	// §     *  Otherwise, no explicit expiration time is present in the response.
	// §        A heuristic freshness lifetime might be applicable; see
	// §        Section 4.2.2.
	//
	// heuristic freshness is not used
	return 0
}
