package summon

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsSummonRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		expect bool
	}{
		{"with X-Summon-Request true", "true", true},
		{"with X-Summon-Request false", "false", false},
		{"without header", "", false},
		{"with other value", "yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Summon-Request", tt.header)
			}

			result := IsSummonRequest(req)
			if result != tt.expect {
				t.Errorf("IsSummonRequest() = %v, want %v", result, tt.expect)
			}
		})
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		expect bool
	}{
		{"json", "application/json", true},
		{"json with params", "text/html, application/json; q=0.9", true},
		{"html", "text/html,application/xhtml+xml", false},
		{"none", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := WantsJSON(req); got != tt.expect {
				t.Errorf("WantsJSON() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestRefererPath(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"absent", "", "/"},
		{"same host", "http://example.com/a/b", "/a/b"},
		{"same host with query", "http://example.com/list?page=2", "/list?page=2"},
		{"relative", "/settings", "/settings"},
		{"other host", "http://evil.example/phish", "/"},
		{"garbage", "http://[::1", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://example.com/summon/callback/x", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			if got := RefererPath(req); got != tt.want {
				t.Errorf("RefererPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
