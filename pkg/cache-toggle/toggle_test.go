package cachetoggle

import (
	"net/http"
	"testing"
)

func TestDisarmedLeavesRequestUntouched(t *testing.T) {
	toggle := NoCache()
	req, _ := http.NewRequest("GET", "/Patient", nil)
	toggle.InterceptRequest(req)
	if len(req.Header) != 0 {
		t.Fatalf("Headers are %v", req.Header)
	}
}

func TestArmedSetsHeader(t *testing.T) {
	toggle := NoCache()
	toggle.Arm()
	req, _ := http.NewRequest("GET", "/Patient", nil)
	toggle.InterceptRequest(req)
	if val := req.Header.Get("Cache-Control"); val != "no-cache" {
		t.Fatalf("Cache-Control is '%s'", val)
	}
}

func TestArmIsIdempotent(t *testing.T) {
	toggle := NoCache()
	toggle.Arm()
	toggle.Arm()
	req, _ := http.NewRequest("GET", "/Patient", nil)
	toggle.InterceptRequest(req)
	toggle.InterceptRequest(req)
	if vals := req.Header.Values("Cache-Control"); len(vals) != 1 {
		t.Fatalf("Cache-Control values are %v", vals)
	}
}

func TestDisarmIsIdempotent(t *testing.T) {
	toggle := NoCache()
	toggle.Arm()
	toggle.Disarm()
	toggle.Disarm()
	if toggle.Armed() {
		t.Fatal("Toggle still armed")
	}
	req, _ := http.NewRequest("GET", "/Patient", nil)
	toggle.InterceptRequest(req)
	if val := req.Header.Get("Cache-Control"); val != "" {
		t.Fatalf("Cache-Control is '%s'", val)
	}
}

func TestCustomHeader(t *testing.T) {
	toggle := New("pragma", "no-cache")
	toggle.Arm()
	req, _ := http.NewRequest("GET", "/Patient", nil)
	toggle.InterceptRequest(req)
	if name, _ := toggle.Header(); name != "Pragma" {
		t.Fatalf("Header name is %s", name)
	}
	if val := req.Header.Get("Pragma"); val != "no-cache" {
		t.Fatalf("Pragma is '%s'", val)
	}
}
