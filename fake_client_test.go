package cachebench

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/always-cache/cachebench/fhir"
)

// fakeClient answers searches in memory and drives the interceptors the way
// fhir.Client does. Requests carrying Cache-Control: no-cache take slow,
// all others take fast.
type fakeClient struct {
	slow, fast time.Duration
	// number of patients returned per family
	patients map[string]int
	// transport errors per family
	fail map[string]error
	// error statuses per family
	status map[string]int

	registerErr   error
	unregisterErr error

	mu           sync.Mutex
	interceptors []fhir.Interceptor
	noCache      []bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		slow:     50 * time.Millisecond,
		fast:     5 * time.Millisecond,
		patients: map[string]int{},
		fail:     map[string]error{},
		status:   map[string]int{},
	}
}

func (f *fakeClient) RegisterInterceptor(i fhir.Interceptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := i.(*timingInterceptor); !ok && f.registerErr != nil {
		return f.registerErr
	}
	for _, registered := range f.interceptors {
		if registered == i {
			return fhir.ErrInterceptorRegistered
		}
	}
	f.interceptors = append(f.interceptors, i)
	return nil
}

func (f *fakeClient) UnregisterInterceptor(i fhir.Interceptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := i.(*timingInterceptor); !ok && f.unregisterErr != nil {
		return f.unregisterErr
	}
	for idx, registered := range f.interceptors {
		if registered == i {
			f.interceptors = append(f.interceptors[:idx:idx], f.interceptors[idx+1:]...)
			return nil
		}
	}
	return fhir.ErrInterceptorNotRegistered
}

func (f *fakeClient) registered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.interceptors)
}

func (f *fakeClient) SearchPatients(ctx context.Context, family string) (*fhir.Bundle, error) {
	f.mu.Lock()
	interceptors := append([]fhir.Interceptor(nil), f.interceptors...)
	f.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/Patient?family="+url.QueryEscape(family), nil).WithContext(ctx)
	for _, i := range interceptors {
		if err := i.InterceptRequest(req); err != nil {
			return nil, err
		}
	}
	noCache := req.Header.Get("Cache-Control") == "no-cache"
	f.mu.Lock()
	f.noCache = append(f.noCache, noCache)
	f.mu.Unlock()

	if err := f.fail[family]; err != nil {
		return nil, err
	}

	elapsed := f.fast
	cacheStatus := "CacheBench; hit"
	if noCache {
		elapsed = f.slow
		cacheStatus = "CacheBench; fwd=request; stored"
	}
	statusCode := http.StatusOK
	if code, ok := f.status[family]; ok {
		statusCode = code
	}
	res := &http.Response{
		StatusCode: statusCode,
		Status:     strconv.Itoa(statusCode) + " " + http.StatusText(statusCode),
		Header:     http.Header{"Cache-Status": []string{cacheStatus}},
		Request:    req,
	}
	for _, i := range interceptors {
		if err := i.InterceptResponse(res, elapsed); err != nil {
			return nil, err
		}
	}
	if statusCode != http.StatusOK {
		return nil, &fhir.StatusError{StatusCode: statusCode, Status: res.Status, URL: req.URL.String()}
	}

	bundle := &fhir.Bundle{ResourceType: "Bundle", Type: "searchset"}
	for n := 0; n < f.patients[family]; n++ {
		bundle.Entry = append(bundle.Entry, fhir.BundleEntry{Resource: &fhir.Patient{
			ResourceType: "Patient",
			Name:         []fhir.HumanName{{Family: family, Given: []string{"P" + strconv.Itoa(n)}}},
			BirthDate:    "2000-01-01",
		}})
	}
	return bundle, nil
}

// timeoutError mimics the error returned by http.Client on timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "Client.Timeout exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errConnectionRefused = errors.New("connection refused")
