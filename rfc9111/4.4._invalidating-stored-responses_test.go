package rfc9111

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvalidateOnPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/baseR4/Patient", nil)
	res := &http.Response{
		StatusCode: http.StatusCreated,
		Header: http.Header{
			"Location":         {"/baseR4/Patient/123"},
			"Content-Location": {"http://other.example.com/x"},
		},
	}
	uris := GetInvalidateURIs(req, res)
	if len(uris) != 2 || uris[0] != "/baseR4/Patient" || uris[1] != "/baseR4/Patient/123" {
		t.Fatalf("URIs are %v", uris)
	}
}

func TestNoInvalidation(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/Patient", nil)
	if uris := GetInvalidateURIs(get, &http.Response{StatusCode: 200}); len(uris) != 0 {
		t.Fatalf("GET invalidated %v", uris)
	}
	post := httptest.NewRequest(http.MethodPost, "/Patient", nil)
	if uris := GetInvalidateURIs(post, &http.Response{StatusCode: 500}); len(uris) != 0 {
		t.Fatalf("Error response invalidated %v", uris)
	}
}
