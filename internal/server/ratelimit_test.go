package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewClientLimiter_DisabledWhenRateZero(t *testing.T) {
	if cl := newClientLimiter(0, 5); cl != nil {
		t.Error("Expected nil limiter for zero rate")
	}
	if cl := newClientLimiter(-1, 5); cl != nil {
		t.Error("Expected nil limiter for negative rate")
	}
}

func TestNilClientLimiterPassesThrough(t *testing.T) {
	var cl *clientLimiter

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	cl.middleware(next).ServeHTTP(w, req)

	if !called {
		t.Error("Nil limiter should pass every request through")
	}
}

func TestClientLimiterAllow(t *testing.T) {
	cl := newClientLimiter(1, 2)

	if !cl.allow("client-a") {
		t.Error("First request should pass")
	}
	if !cl.allow("client-a") {
		t.Error("Second request should pass within burst")
	}
	if cl.allow("client-a") {
		t.Error("Third request should exceed the burst")
	}

	// Another client has its own bucket.
	if !cl.allow("client-b") {
		t.Error("Distinct client should not share the bucket")
	}
}

func TestClientLimiterPurgesIdleEntries(t *testing.T) {
	cl := newClientLimiter(10, 10)

	cl.mu.Lock()
	cl.clients["stale"] = &clientEntry{
		limiter:  rate.NewLimiter(cl.rps, cl.burst),
		lastSeen: time.Now().Add(-time.Hour),
	}
	cl.purgeIdle(time.Now())
	_, ok := cl.clients["stale"]
	cl.mu.Unlock()

	if ok {
		t.Error("Idle entry should have been purged")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/events?sessionID=s42", nil)
	if key := clientKey(req); key != "s42" {
		t.Errorf("Expected session key, got %q", key)
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	if key := clientKey(req); key != "203.0.113.9" {
		t.Errorf("Expected host key, got %q", key)
	}

	req.RemoteAddr = "203.0.113.9"
	if key := clientKey(req); key != "203.0.113.9" {
		t.Errorf("Expected raw address fallback, got %q", key)
	}
}

func TestRateLimit_TooManyRequests(t *testing.T) {
	srv, _ := setupTestServer(t, serverOpts{
		config: &Config{Port: 0, RateRPS: 1, RateBurst: 1},
	})

	// httptest requests share one RemoteAddr, so they count as one client.
	w := doRequest(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d", w.Code)
	}

	w = doRequest(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	resp := decodeJSON[ErrorResponse](t, w)
	if resp.Error.Code != ErrCodeRateLimited {
		t.Errorf("Expected RATE_LIMITED, got %s", resp.Error.Code)
	}
}

func TestRateLimit_HealthzExempt(t *testing.T) {
	srv, _ := setupTestServer(t, serverOpts{
		config: &Config{Port: 0, RateRPS: 1, RateBurst: 1},
	})

	w := doRequest(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d", w.Code)
	}

	for i := 0; i < 3; i++ {
		w = doRequest(t, srv, "GET", "/healthz", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Liveness probe %d should never be throttled, got %d", i, w.Code)
		}
	}
}

func TestRateLimit_SessionsThrottledIndependently(t *testing.T) {
	srv, _ := setupTestServer(t, serverOpts{
		config: &Config{Port: 0, RateRPS: 1, RateBurst: 1},
	})

	// The middleware keys on the sessionID query parameter; the handler
	// behind it answering 404 is irrelevant here.
	if w := doRequest(t, srv, "GET", "/session/a/history?sessionID=a", nil); w.Code == http.StatusTooManyRequests {
		t.Fatal("First request for session a should pass")
	}
	if w := doRequest(t, srv, "GET", "/session/b/history?sessionID=b", nil); w.Code == http.StatusTooManyRequests {
		t.Fatal("Session b should not share session a's bucket")
	}
	if w := doRequest(t, srv, "GET", "/session/a/history?sessionID=a", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("Second request for session a should be throttled, got %d", w.Code)
	}
}
