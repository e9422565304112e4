package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormaliseBaseURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://localhost:1234", "http://localhost:1234"},
		{"http://localhost:1234/", "http://localhost:1234"},
		{"", ""},
		{"/", "/"},
	}

	for _, tt := range tests {
		if got := NormaliseBaseURL(tt.input); got != tt.expected {
			t.Errorf("NormaliseBaseURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseTrustedCIDRs(t *testing.T) {
	cidrs, err := ParseTrustedCIDRs([]string{"10.0.0.0/8", " 192.168.0.0/16 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cidrs) != 2 {
		t.Fatalf("expected 2 CIDRs, got %d", len(cidrs))
	}

	if _, err := ParseTrustedCIDRs([]string{"not-a-cidr"}); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}

	cidrs, err = ParseTrustedCIDRs(nil)
	if err != nil || cidrs != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", cidrs, err)
	}
}

func TestGetClientIP(t *testing.T) {
	trusted, err := ParseTrustedCIDRs([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name              string
		remoteAddr        string
		forwardedFor      string
		trustProxyHeaders bool
		expected          string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.5:4321",
			expected:   "192.168.1.5",
		},
		{
			name:              "proxy headers ignored when disabled",
			remoteAddr:        "10.0.0.1:4321",
			forwardedFor:      "203.0.113.7",
			trustProxyHeaders: false,
			expected:          "10.0.0.1",
		},
		{
			name:              "forwarded-for honoured from trusted proxy",
			remoteAddr:        "10.0.0.1:4321",
			forwardedFor:      "203.0.113.7",
			trustProxyHeaders: true,
			expected:          "203.0.113.7",
		},
		{
			name:              "forwarded-for ignored from untrusted source",
			remoteAddr:        "172.16.0.1:4321",
			forwardedFor:      "203.0.113.7",
			trustProxyHeaders: true,
			expected:          "172.16.0.1",
		},
		{
			name:              "first hop wins in forwarded chain",
			remoteAddr:        "10.0.0.1:4321",
			forwardedFor:      "203.0.113.7, 198.51.100.2",
			trustProxyHeaders: true,
			expected:          "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				r.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}

			if got := GetClientIP(r, tt.trustProxyHeaders, trusted); got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if id == "" {
			t.Fatal("expected non-empty request id")
		}
		seen[id] = true
	}
	if len(seen) < 50 {
		t.Errorf("expected mostly unique ids, got %d unique out of 100", len(seen))
	}
}
