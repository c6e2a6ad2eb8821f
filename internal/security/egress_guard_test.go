package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewEgressGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
func TestNewSafeClientHasTransport(t *testing.T) {
	client := NewEgressGuard().NewSafeClient(5*time.Second, 8443)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewEgressGuard().NewSafeClient(5 * time.Second)

	_, err := client.Get(ts.URL + "/api/user")
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateOrigin_Public は公開オリジンの検証が成功し、ポートが導出されることをテストする。
func TestValidateOrigin_Public(t *testing.T) {
	tests := []struct {
		origin string
		port   int
	}{
		{"https://api.example.edu", 443},
		{"http://api.example.edu", 80},
		{"https://api.example.edu:8443", 8443},
	}

	guard := NewEgressGuard()
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			port, err := guard.ValidateOrigin(tt.origin)
			if err != nil {
				t.Fatalf("ValidateOrigin(%q) returned error: %v", tt.origin, err)
			}
			if port != tt.port {
				t.Errorf("port = %d, want %d", port, tt.port)
			}
		})
	}
}

// TestValidateOrigin_Blocked は内部向けのオリジンが拒否されることをテストする。
func TestValidateOrigin_Blocked(t *testing.T) {
	blocked := []string{
		"",
		"not-a-url",
		"ftp://example.com",
		"file:///etc/passwd",
		"http://10.0.0.1",
		"http://172.16.0.1:8000",
		"http://192.168.1.100",
		"http://127.0.0.1:8000",
		"http://localhost:8000",
		"http://169.254.169.254",
		"http://[::1]",
		"http://0.0.0.0",
		"http://api.example.edu:99999",
	}

	guard := NewEgressGuard()
	for _, u := range blocked {
		t.Run(u, func(t *testing.T) {
			if _, err := guard.ValidateOrigin(u); err == nil {
				t.Errorf("ValidateOrigin(%q) should have returned error", u)
			}
		})
	}
}
