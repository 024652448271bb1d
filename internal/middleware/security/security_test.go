package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   string
	}{
		{"dashboard", http.MethodGet, "/ui/charts?start=2011-01-01&season=Fall", "Mozilla/5.0", ""},
		{"traversal", http.MethodGet, "/static/../../etc/passwd", "", "path:../"},
		{"env probe", http.MethodGet, "/.env", "", "path:.env"},
		{"encoded query left alone", http.MethodGet, "/?season=x%27+union+select", "", ""},
		{"raw query pattern", http.MethodGet, "/?q=javascript:alert", "", "query:javascript:"},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "agent:sqlmap"},
		{"trace method", "TRACE", "/", "", "method:TRACE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.ua)
			if got := NewDetector().Inspect(r); got != tt.want {
				t.Fatalf("Inspect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspectCountsSuspicious(t *testing.T) {
	d := NewDetector()
	d.Inspect(httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	d.Inspect(httptest.NewRequest(http.MethodGet, "/", nil))
	if got := d.GetMetrics().SuspiciousRequests; got != 1 {
		t.Fatalf("suspicious = %d, want 1", got)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.9:5000", "198.51.100.1", "", "203.0.113.9"},
		{"trusted peer uses first xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted peer falls back to x-real-ip", "127.0.0.1:80", "garbage", "198.51.100.7", "198.51.100.7"},
		{"no port", "192.0.2.4", "", "", "192.0.2.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := NewDetector().ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing X-Frame-Options")
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "https://unpkg.com") {
		t.Fatal("CSP should allow htmx from unpkg")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if !strings.HasPrefix(rr.Header().Get("Strict-Transport-Security"), "max-age=31536000") {
		t.Fatalf("unexpected HSTS %q", rr.Header().Get("Strict-Transport-Security"))
	}
}
