package handler

import (
	"net/http/httptest"
	"testing"
)

func TestAuditIP(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		host string
		want string
	}{
		{"first forwarded hop", "203.0.113.4, 10.0.0.2", "api.example.com", "203.0.113.4"},
		{"single forwarded", "198.51.100.1", "api.example.com", "198.51.100.1"},
		{"host fallback", "", "api.example.com", "api.example.com"},
		{"no host", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/api/admin/alerts", nil)
			req.Host = tt.host
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := auditIP(req); got != tt.want {
				t.Errorf("auditIP = %q, want %q", got, tt.want)
			}
		})
	}
}
