package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSecurityHeaders(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	secured := SecurityHeaders(handler)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	secured.ServeHTTP(w, req)

	tests := []struct {
		header   string
		expected string
		contains bool
	}{
		{"X-Frame-Options", "DENY", false},
		{"X-Content-Type-Options", "nosniff", false},
		{"Referrer-Policy", "strict-origin-when-cross-origin", false},
		{"Content-Security-Policy", "default-src 'self'", true},
		{"Content-Security-Policy", "connect-src 'self' ws: wss:", true},
		{"Permissions-Policy", "camera=()", true},
	}

	for _, tc := range tests {
		got := w.Header().Get(tc.header)
		if tc.contains {
			if !strings.Contains(got, tc.expected) {
				t.Errorf("Expected %s header to contain '%s', got '%s'", tc.header, tc.expected, got)
			}
		} else if got != tc.expected {
			t.Errorf("Expected %s header to be '%s', got '%s'", tc.header, tc.expected, got)
		}
	}

	if strings.Contains(w.Header().Get("Content-Security-Policy"), "youtube") {
		t.Error("Expected no third-party frame sources")
	}
}

func TestSecurityHeaders_PassesThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("Hello"))
	})

	secured := SecurityHeaders(handler)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	secured.ServeHTTP(w, req)

	if !called {
		t.Error("Expected handler to be called")
	}
	if w.Body.String() != "Hello" {
		t.Errorf("Expected body 'Hello', got '%s'", w.Body.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/room/join", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	out := buf.String()
	for _, want := range []string{`"path":"/api/room/join"`, `"status":418`, `"req_id"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected access log to contain %s, got %s", want, out)
		}
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id response header")
	}
}
