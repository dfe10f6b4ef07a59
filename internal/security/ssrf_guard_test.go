package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewSSRFGuard()

	urls := []string{
		"https://kith.com",
		"https://shop.example.com/products.json",
		"http://example.com",
		"https://discord.com/api/webhooks/1/abc",
	}
	for _, u := range urls {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateURL_RejectsBlockedTargets(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", "empty URL"},
		{"ftp scheme", "ftp://example.com", "disallowed scheme"},
		{"javascript scheme", "javascript:alert(1)", "disallowed scheme"},
		{"no host", "https://", "empty host"},
		{"localhost", "http://localhost:8080", "blocked host"},
		{"loopback", "http://127.0.0.1", "blocked IP"},
		{"private 10", "http://10.0.0.5", "blocked IP"},
		{"private 172", "http://172.16.1.1", "blocked IP"},
		{"private 192", "http://192.168.1.1", "blocked IP"},
		{"metadata", "http://169.254.169.254/latest/meta-data/", "blocked IP"},
		{"ipv6 loopback", "http://[::1]", "blocked IP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if err == nil {
				t.Fatalf("ValidateURL(%q) = nil, want error", tt.url)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()
	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("expected a client")
	}
}
