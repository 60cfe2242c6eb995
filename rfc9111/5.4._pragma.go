package rfc9111

import (
	"net/http"
	"strings"
)

// §  5.4.  Pragma
// §
// §     The "Pragma" request header field was defined for HTTP/1.0 caches, so
// §     that clients could specify a "no-cache" request (as Cache-Control was
// §     not defined until HTTP/1.1).
// §
// §     However, support for Cache-Control is now widespread.  As a result,
// §     this specification deprecates Pragma.
//
// RFC 7234 had caches treat "Pragma: no-cache" as "Cache-Control: no-cache"
// when the request has no Cache-Control. Older clients still send it.
func pragmaNoCache(header http.Header) bool {
	for _, item := range GetListHeader(header, "Pragma") {
		if strings.EqualFold(item, "no-cache") {
			return true
		}
	}
	return false
}
