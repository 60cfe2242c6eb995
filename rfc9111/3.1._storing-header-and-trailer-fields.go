package rfc9111

import (
	"net/http"
	"strings"
)

// hop-by-hop fields, see Section 7.6.1 of [HTTP]
var hopByHopFields = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"TE",
	"Transfer-Encoding",
	"Upgrade",
}

// StorableHeader returns a copy of the header that can be stored.
//
// §  3.1.  Storing Header and Trailer Fields
// §
// §     Caches MUST include all received response header fields -- including
// §     unrecognized ones -- when storing a response; this assures that new
// §     HTTP header fields can be successfully deployed.  However, the
// §     following exceptions are made:
// §
// §     *  The Connection header field and fields whose names are listed in
// §        it are required by Section 7.6.1 of [HTTP] to be removed before
// §        forwarding the message.  This MAY be implemented by doing so
// §        before storage.
// §
// §     *  Likewise, some fields' semantics require them to be removed before
// §        forwarding the message, and this MAY be implemented by doing so
// §        before storage; see Section 7.6.1 of [HTTP] for some examples.
func StorableHeader(header http.Header) http.Header {
	if header == nil {
		return nil
	}
	return withoutHopByHop(header.Clone())
}

// GetForwardRequest returns a copy of the request with hop-by-hop fields removed.
func GetForwardRequest(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	withoutHopByHop(r.Header)
	return r
}

func withoutHopByHop(h http.Header) http.Header {
	for _, field := range GetListHeader(h, "Connection") {
		h.Del(field)
	}
	for _, field := range hopByHopFields {
		h.Del(field)
	}
	return h
}

// GetListHeader returns the members of a list-based field, across all field lines.
func GetListHeader(header http.Header, field string) []string {
	list := make([]string, 0)
	for _, hdr := range header.Values(field) {
		for _, item := range strings.Split(hdr, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}
