package rfc9111

import (
	"net/http"
	"time"
)

// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.
// §
// §       Expires = HTTP-date
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").
// §
// §     If a response includes a Cache-Control header field with the max-age
// §     directive (Section 5.2.2.1), a recipient MUST ignore the Expires
// §     header field.
//
// The caller is responsible for the max-age check, see freshness_lifetime.
// The bool result is false if the header is absent.
func getExpires(res *http.Response) (time.Time, bool) {
	value := res.Header.Get("Expires")
	if value == "" {
		return time.Time{}, false
	}
	if exp, err := HttpDate(value); err == nil {
		return exp, true
	}
	return time.Unix(0, 0), true
}
