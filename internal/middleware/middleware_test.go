package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"carriage\rreturn", "carriage return"},
		{"null\x00byte", "nullbyte"},
		{"ansi\x1b[31mred", "ansi[31mred"},
		{"tab\tok", "tab\tok"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	config := LoggingConfig{
		SkipPaths:       []string{"/internal"},
		LogHealthChecks: false,
	}

	if !shouldSkip("/healthz", config) {
		t.Error("Health checks should be skipped when disabled")
	}
	if !shouldSkip("/internal/debug", config) {
		t.Error("Configured skip prefix should be skipped")
	}
	if shouldSkip("/api/volumes", config) {
		t.Error("API paths should be logged")
	}

	config.LogHealthChecks = true
	if shouldSkip("/healthz", config) {
		t.Error("Health checks should be logged when enabled")
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	if ip := getClientIP(r); ip != "10.0.0.1" {
		t.Errorf("getClientIP = %q, want 10.0.0.1", ip)
	}

	r.Header.Set("X-Forwarded-For", "192.168.1.5, 10.0.0.1")
	if ip := getClientIP(r); ip != "192.168.1.5" {
		t.Errorf("getClientIP with XFF = %q, want 192.168.1.5", ip)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/volumes", "/api/volumes"},
		{"/api/volumes/photos", "/api/volumes/{name}"},
		{"/api/volumes/photos/scan", "/api/volumes/{name}/scan"},
		{"/version", "/version"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	if _, err := rw.Write([]byte("body")); err != nil {
		t.Fatal(err)
	}

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want first WriteHeader to win", rw.statusCode)
	}
	if rw.bytesWritten != 4 {
		t.Errorf("bytesWritten = %d, want 4", rw.bytesWritten)
	}
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/volumes", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("skipped path status = %d, want pass-through", rec.Code)
	}
}
