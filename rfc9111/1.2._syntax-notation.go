package rfc9111

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  [...] If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
const maxDeltaSeconds = math.MaxInt32 + 1

// deltaSeconds parses delta-seconds. It returns false if the value is not a
// non-negative integer.
func deltaSeconds(secondsStr string) (time.Duration, bool) {
	secondsStr = strings.TrimSpace(secondsStr)
	if secondsStr == "" {
		return 0, false
	}
	for _, c := range secondsStr {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	seconds, err := strconv.ParseUint(secondsStr, 10, 64)
	if err != nil || seconds > maxDeltaSeconds {
		// only overflow gets here
		seconds = maxDeltaSeconds
	}
	return time.Second * time.Duration(seconds), true
}

func toDeltaSeconds(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}
	return strconv.FormatInt(int64(duration/time.Second), 10)
}

// This section is from HTTP Semantics (RFC 9110)
//
// §  5.6.7.  Date/Time Formats
// §
// §       HTTP-date    = IMF-fixdate / obs-date
// §
// §     An example of the preferred format is
// §
// §       Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate
// §
// §     Examples of the two obsolete formats are
// §
// §       Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
// §       Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.
func HttpDate(dateStr string) (time.Time, error) {
	date, err := imfDate(dateStr)
	if err == nil {
		return date, nil
	}
	if date, obsErr := obsDate(dateStr); obsErr == nil {
		return date, nil
	}
	// return original error if unsuccessful
	return time.Time{}, err
}

// §     When a sender generates a field that contains one or more timestamps
// §     defined as HTTP-date, the sender MUST generate those timestamps in
// §     the IMF-fixdate format.
func ToHttpDate(t time.Time) string {
	return t.UTC().Format(imfDateLayout)
}

// §       IMF-fixdate  = day-name "," SP date1 SP time-of-day SP GMT
const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

func imfDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if !strings.HasSuffix(str, " GMT") {
		return time.Time{}, fmt.Errorf("date %q is not in GMT", dateStr)
	}
	return time.Parse(imfDateLayout, str)
}

// §       obs-date     = rfc850-date / asctime-date
func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.Parse(time.RFC850, str); err == nil {
		return date, nil
	}
	return time.Parse(time.ANSIC, str)
}

// §     HTTP-date is case sensitive.  Note that Section 4.2 of [CACHING]
// §     relaxes this for cache recipients.
//
// Day and month names are brought to the case time.Parse expects.
func normalizeDateStr(dateStr string) string {
	fields := strings.Fields(strings.TrimSpace(dateStr))
	for i, field := range fields {
		if i == len(fields)-1 && strings.EqualFold(field, "GMT") {
			fields[i] = "GMT"
			continue
		}
		fields[i] = titleCase(field)
	}
	str := strings.Join(fields, " ")
	// asctime pads single-digit days with a space
	if len(fields) == 5 && len(fields[2]) == 1 {
		str = strings.Join(fields[:2], " ") + "  " + strings.Join(fields[2:], " ")
	}
	return str
}

// titleCase capitalizes each letter that follows a non-letter, e.g. "18-aug-50" -> "18-Aug-50".
func titleCase(s string) string {
	b := []byte(strings.ToLower(s))
	prevLetter := false
	for i, c := range b {
		isLetter := c >= 'a' && c <= 'z'
		if isLetter && !prevLetter {
			b[i] = c - 'a' + 'A'
		}
		prevLetter = isLetter
	}
	return string(b)
}
