package privacy

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractUntrustedPeerIgnoresHeaders(t *testing.T) {
	p, err := New([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4444"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := p.Extract(r); got != "203.0.113.9" {
		t.Errorf("untrusted peer must not spoof via headers, got %q", got)
	}
}

func TestExtractWalksForwardedChain(t *testing.T) {
	p, err := New([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4444"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2, 10.0.0.3")

	if got := p.Extract(r); got != "198.51.100.1" {
		t.Errorf("first untrusted hop must win, got %q", got)
	}
}

func TestExtractBareIPTrustEntry(t *testing.T) {
	p, err := New([]string{"10.0.0.5"})
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4444"
	r.Header.Set("X-Real-IP", "198.51.100.7")

	if got := p.Extract(r); got != "198.51.100.7" {
		t.Errorf("got %q", got)
	}
}

func TestMask(t *testing.T) {
	cases := []struct{ in, want string }{
		{"203.0.113.74", "203.0.113.0"},
		{"10.1.2.3", "10.1.2.0"},
		{"2001:db8:abcd:1234::1", "2001:db8:abcd::"},
		{"not-an-ip", "not-an-ip"},
	}
	for _, tc := range cases {
		if got := Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMiddlewareInstallsContext(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}

	var client, masked string
	h := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client = ClientIP(r.Context())
		masked = MaskedIP(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.74:5555"
	h.ServeHTTP(httptest.NewRecorder(), r)

	if client != "203.0.113.74" {
		t.Errorf("client = %q", client)
	}
	if masked != "203.0.113.0" {
		t.Errorf("masked = %q", masked)
	}
}
