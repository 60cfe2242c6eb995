package cachetoggle

import (
	"net/http"
	"sync"
	"time"
)

// Header set by NoCache.
const (
	DefaultHeader = "Cache-Control"
	DefaultValue  = "no-cache"
)

// Toggle is a request interceptor that adds a cache bypass header to every
// request while it is armed. Disarmed, it leaves requests untouched.
type Toggle struct {
	header string
	value  string

	mu    sync.RWMutex
	armed bool
}

// New creates a disarmed toggle setting header to value when armed.
func New(header, value string) *Toggle {
	return &Toggle{
		header: http.CanonicalHeaderKey(header),
		value:  value,
	}
}

// NoCache creates a disarmed toggle for "Cache-Control: no-cache".
func NoCache() *Toggle {
	return New(DefaultHeader, DefaultValue)
}

// Arm activates the toggle. Arming an armed toggle does nothing.
func (t *Toggle) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
}

// Disarm deactivates the toggle. Disarming a disarmed toggle does nothing.
func (t *Toggle) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
}

// Armed reports whether the toggle is active.
func (t *Toggle) Armed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.armed
}

// Header returns the header name and value the toggle sets.
func (t *Toggle) Header() (string, string) {
	return t.header, t.value
}

// InterceptRequest sets the header if armed.
// The header is set, not added, so the request carries exactly one value.
func (t *Toggle) InterceptRequest(req *http.Request) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.armed {
		req.Header.Set(t.header, t.value)
	}
	return nil
}

// InterceptResponse does nothing.
func (t *Toggle) InterceptResponse(*http.Response, time.Duration) error {
	return nil
}
