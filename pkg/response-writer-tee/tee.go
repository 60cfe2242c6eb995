package tee

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// ResponseSaver is a wrapper around http.ResponseWriter that saves the response to a buffer
// while writing it to the underlying http.ResponseWriter.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
	onHeader     func(statusCode int, header http.Header, downstream http.Header)
	// The value of the clock when the saver was created, i.e. before the request was forwarded.
	CreatedAt time.Time
}

// NewResponseSaver returns a new ResponseSaver teeing to w.
func NewResponseSaver(w http.ResponseWriter) *ResponseSaver {
	return &ResponseSaver{
		CreatedAt: time.Now(),
		rw:        w,
		b:         &bytes.Buffer{},
		header:    http.Header{},
	}
}

// OnHeader registers a function called once, before the status and headers are
// written downstream. Header holds the saved headers, downstream the headers of the
// underlying writer. Changes to downstream are not saved.
func (t *ResponseSaver) OnHeader(f func(statusCode int, header http.Header, downstream http.Header)) {
	t.onHeader = f
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	// write http status, headers, and separator to buffer
	// this uses HTTP 1.1 format only
	fmt.Fprintf(t.b, "HTTP/1.1 %d %s\r\n", statusCode, http.StatusText(statusCode))
	t.header.Write(t.b)
	t.b.WriteString("\r\n")
	copyHeader(t.rw.Header(), t.header)
	if t.onHeader != nil {
		t.onHeader(statusCode, t.header, t.rw.Header())
	}
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	t.b.Write(b)
	return t.rw.Write(b)
}

// Flush implements http.Flusher.
func (t *ResponseSaver) Flush() {
	if f, ok := t.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Response returns the recorded response as a byte slice.
func (t *ResponseSaver) Response() []byte {
	return t.b.Bytes()
}

// StatusCode returns the status code of the response.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
