package rfc9111

import (
	"net/http"
	"time"
)

// ages holds the clock values needed to calculate the age of a stored response.
type ages struct {
	// §     "request_time"
	// §        The value of the clock at the time of the request that resulted in
	// §        the stored response.
	requestTime time.Time
	// §     "response_time"
	// §        The value of the clock at the time the response was received.
	responseTime time.Time
	// §     "now"
	// §        The term "now" means the current value of this implementation's
	// §        clock (Section 5.6.7 of [HTTP]).
	now time.Time
}

// §  4.2.3.  Calculating Age
// §
// §     "age_value"
// §        The term "age_value" denotes the value of the Age header field
// §        (Section 5.1), in a form appropriate for arithmetic operation; or
// §        0, if not available.
func age_value(res *http.Response) time.Duration {
	if age, present := getAge(res); present {
		return age
	}
	return 0
}

// §     "date_value"
// §        The term "date_value" denotes the value of the Date header field,
// §        in a form appropriate for arithmetic operations.
//
// The response time is used if the Date header is missing or invalid.
func (a ages) date_value(res *http.Response) time.Time {
	if date, err := HttpDate(res.Header.Get("Date")); err == nil {
		return date
	}
	return a.responseTime
}

// §       apparent_age = max(0, response_time - date_value);
func (a ages) apparent_age(res *http.Response) time.Duration {
	return max(0, a.responseTime.Sub(a.date_value(res)))
}

// §       response_delay = response_time - request_time;
func (a ages) response_delay() time.Duration {
	return max(0, a.responseTime.Sub(a.requestTime))
}

// §       corrected_age_value = age_value + response_delay;
func (a ages) corrected_age_value(res *http.Response) time.Duration {
	return age_value(res) + a.response_delay()
}

// §       corrected_initial_age = max(apparent_age, corrected_age_value);
func (a ages) corrected_initial_age(res *http.Response) time.Duration {
	return max(a.apparent_age(res), a.corrected_age_value(res))
}

// §       resident_time = now - response_time;
func (a ages) resident_time() time.Duration {
	return a.now.Sub(a.responseTime)
}

// §       current_age = corrected_initial_age + resident_time;
func (a ages) current_age(res *http.Response) time.Duration {
	return a.corrected_initial_age(res) + a.resident_time()
}
