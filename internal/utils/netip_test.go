package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.10 ", "", "not-an-ip", "fd00::/8"})

	tests := []struct {
		ip       string
		expected bool
	}{
		{ip: "10.1.2.3", expected: true},
		{ip: "192.168.1.10", expected: true},
		{ip: "192.168.1.11", expected: false},
		{ip: "::ffff:10.0.0.1", expected: true},
		{ip: "fd12::1", expected: true},
		{ip: "2001:db8::1", expected: false},
		{ip: "garbage", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := m.Allow(tt.ip); got != tt.expected {
				t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}

	if !NewIPMatcher([]string{"", "nope"}).IsEmpty() {
		t.Error("matcher with no valid entries should be empty")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{name: "remote addr", expected: "10.0.0.5"},
		{
			name:     "headers ignored without trust",
			headers:  map[string]string{"X-Forwarded-For": "1.2.3.4"},
			expected: "10.0.0.5",
		},
		{
			name:       "cloudflare header first",
			headers:    map[string]string{"CF-Connecting-IP": "5.6.7.8", "X-Forwarded-For": "1.2.3.4"},
			trustProxy: true,
			expected:   "5.6.7.8",
		},
		{
			name:       "left-most forwarded for",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 9.9.9.9"},
			trustProxy: true,
			expected:   "1.2.3.4",
		},
		{
			name:       "real ip",
			headers:    map[string]string{"X-Real-IP": "4.3.2.1:5555"},
			trustProxy: true,
			expected:   "4.3.2.1",
		},
		{name: "trusted without headers", trustProxy: true, expected: "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = "10.0.0.5:40000"
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}
