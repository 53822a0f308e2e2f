package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", res.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Referrer-Policy":             "strict-origin-when-cross-origin",
		"Access-Control-Allow-Origin": "http://127.0.0.1:3000",
	} {
		if got := res.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("preflight returned %d, want 204", res.Code)
	}
	allowed := res.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(allowed, confirmHeader) {
		t.Fatalf("Allow-Headers %q is missing %s", allowed, confirmHeader)
	}
}

func TestLoginRateLimitPerClient(t *testing.T) {
	api := newTestAPI(t)

	login := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"pin":"9999"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remoteAddr
		res := httptest.NewRecorder()
		api.Handler().ServeHTTP(res, req)
		return res.Code
	}

	for i := 0; i < 5; i++ {
		if code := login("10.0.0.9:4455"); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d returned %d, want 401", i+1, code)
		}
	}
	if code := login("10.0.0.9:9999"); code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt returned %d, want 429", code)
	}

	// A different client IP is not throttled.
	if code := login("10.0.0.10:4455"); code != http.StatusUnauthorized {
		t.Fatalf("fresh client returned %d, want 401", code)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	huge := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(huge))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("oversized body returned %d, want 400", res.Code)
	}
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusInternalServerError, errDetail{})
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Fatalf("missing generic message: %s", rec.Body.String())
	}
}

type errDetail struct{}

func (errDetail) Error() string { return "pg: secret connection string" }
