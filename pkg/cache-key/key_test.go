package cachekey

import (
	"net/http"
	"strings"
	"testing"
)

func TestRequestFromKey(t *testing.T) {
	keygen := NewCacheKeyer("this-is-the-origin")
	r, _ := http.NewRequest("GET", "http://dev.localhost/baseR4/Patient?family=SMITH", nil)
	key := keygen.GetKeyPrefix(r)
	req, err := keygen.GetRequestFromKey(key)
	if err != nil {
		t.Fatalf("%s: %s", key, err)
	}
	if url := req.URL.String(); url != "/baseR4/Patient?family=SMITH" {
		t.Fatalf("Created request url for key %s is %s", key, url)
	}
}

func TestOriginPrefixIncludesOrigin(t *testing.T) {
	origin := "this-is-the-origin"
	keygen := NewCacheKeyer(origin)
	if !strings.Contains(keygen.OriginPrefix, origin) {
		t.Fatalf("OriginPrefix is %s", keygen.OriginPrefix)
	}
}

func TestHeadSharesGetKey(t *testing.T) {
	keygen := NewCacheKeyer("origin")
	get, _ := http.NewRequest("GET", "/Patient", nil)
	head, _ := http.NewRequest("HEAD", "/Patient", nil)
	if keygen.GetKeyPrefix(get) != keygen.GetKeyPrefix(head) {
		t.Fatal("HEAD and GET keys differ")
	}
}

func TestVaryKeys(t *testing.T) {
	keygen := NewCacheKeyer("origin")
	req, _ := http.NewRequest("GET", "/Patient?family=SMITH", nil)
	req.Header.Set("Accept", "application/fhir+json")
	res := &http.Response{Header: http.Header{"Vary": {"Accept, Accept-Encoding"}}}

	prefix := keygen.GetKeyPrefix(req)
	key := keygen.AddVaryKeys(prefix, req, res)
	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("Key %q does not start with prefix", key)
	}
	stored, err := keygen.GetRequestFromKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if got := stored.Header.Get("Accept"); got != "application/fhir+json" {
		t.Fatalf("Accept is %s", got)
	}
	if _, ok := stored.Header["Accept-Encoding"]; ok {
		t.Fatal("Absent header should not be in key")
	}
}

func TestForeignKey(t *testing.T) {
	keygen := NewCacheKeyer("origin")
	if _, err := keygen.GetRequestFromKey("other:GET:/\t"); err == nil {
		t.Fatal("Key of other origin accepted")
	}
}
