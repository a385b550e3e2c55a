package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultCSRFConfig_Development(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012") // 32-byte key
	cfg := DefaultCSRFConfig(authKey, true)               // isDev = true

	// Check AuthKey is set
	if len(cfg.AuthKey) != 32 {
		t.Errorf("expected 32-byte AuthKey, got %d bytes", len(cfg.AuthKey))
	}

	// Check TrustedOrigins are host-only (not full URLs)
	// This is critical for the csrf library to work correctly
	if len(cfg.TrustedOrigins) != 2 {
		t.Errorf("expected 2 TrustedOrigins in dev mode, got %d", len(cfg.TrustedOrigins))
	}

	expectedOrigins := map[string]bool{
		"localhost:8080": true,
		"127.0.0.1:8080": true,
	}

	for _, origin := range cfg.TrustedOrigins {
		if !expectedOrigins[origin] {
			t.Errorf("unexpected TrustedOrigin: %s (should be host:port, not full URL)", origin)
		}
		// Verify it's not a full URL (should not contain "http")
		if len(origin) > 4 && origin[:4] == "http" {
			t.Errorf("TrustedOrigin should be host:port, not full URL: %s", origin)
		}
	}
}

func TestDefaultCSRFConfig_Production(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012") // 32-byte key
	cfg := DefaultCSRFConfig(authKey, false)              // isDev = false (production)

	// Check AuthKey is set
	if len(cfg.AuthKey) != 32 {
		t.Errorf("expected 32-byte AuthKey, got %d bytes", len(cfg.AuthKey))
	}

	// Check no TrustedOrigins in production (stricter security)
	if len(cfg.TrustedOrigins) != 0 {
		t.Errorf("expected no TrustedOrigins in production, got %d", len(cfg.TrustedOrigins))
	}
}

func TestCSRFConfig_AuthKeyLength(t *testing.T) {
	// Test with exactly 32-byte key (recommended)
	key32 := []byte("12345678901234567890123456789012")
	cfg := DefaultCSRFConfig(key32, false)

	if len(cfg.AuthKey) != 32 {
		t.Errorf("expected 32-byte AuthKey, got %d bytes", len(cfg.AuthKey))
	}
}

func TestCSRF_MiddlewareCreation(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	cfg := DefaultCSRFConfig(authKey, true)

	// Should not panic when creating middleware
	middleware := CSRF(cfg)

	if middleware == nil {
		t.Error("expected middleware to be non-nil")
	}

	// Create a test handler
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap the handler
	handler := middleware(testHandler)

	if handler == nil {
		t.Error("expected wrapped handler to be non-nil")
	}
}

func TestCSRF_WithCustomErrorHandler(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	cfg := DefaultCSRFConfig(authKey, true)

	customCalled := false
	cfg.ErrorHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customCalled = true
		http.Error(w, "Custom CSRF Error", http.StatusForbidden)
	})

	middleware := CSRF(cfg)

	if middleware == nil {
		t.Error("expected middleware to be non-nil with custom error handler")
	}

	// Note: We can't easily test that the custom handler is called without
	// triggering an actual CSRF failure, which requires cookies and tokens.
	// The test above validates that the middleware accepts a custom handler.
	_ = customCalled
}

// TestTrustedOriginsFormat validates that TrustedOrigins use the correct format.
// The csrf library expects host:port format, NOT full URLs.
// Using full URLs (http://localhost:8080) causes "origin invalid" errors.
func TestTrustedOriginsFormat(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	cfg := DefaultCSRFConfig(authKey, true) // dev mode

	for _, origin := range cfg.TrustedOrigins {
		// Check it doesn't start with http:// or https://
		if len(origin) > 7 && (origin[:7] == "http://" || origin[:8] == "https://") {
			t.Errorf("TrustedOrigin '%s' should be host:port format, not full URL", origin)
		}

		// Check it contains a port (host:port format)
		hasPort := false
		for _, c := range origin {
			if c == ':' {
				hasPort = true
				break
			}
		}
		if !hasPort {
			t.Errorf("TrustedOrigin '%s' should include port (e.g., localhost:8080)", origin)
		}
	}
}

func TestCSRF_RejectsCrossSitePost(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	handler := CSRF(DefaultCSRFConfig(authKey, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		method    string
		fetchSite string
		want      int
	}{
		{"same origin post", http.MethodPost, "same-origin", http.StatusOK},
		{"cross site get", http.MethodGet, "cross-site", http.StatusOK},
		{"cross site post", http.MethodPost, "cross-site", http.StatusForbidden},
		{"cross site delete", http.MethodDelete, "cross-site", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "https://docs.example.com/api/documents", nil)
			req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				var body APIError
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decoding body: %v", err)
				}
				if body.Error.Code != "csrf_failed" {
					t.Errorf("error code = %q, want csrf_failed", body.Error.Code)
				}
			}
		})
	}
}
