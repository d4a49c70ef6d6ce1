package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL bounds how long an idle client entry is retained.
const limiterIdleTTL = 10 * time.Minute

// limiterPurgeAt is the map size that triggers a purge of idle entries.
const limiterPurgeAt = 256

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter enforces a per-client request rate, keyed by session ID
// when the request names one and by remote address otherwise.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     rate.Limit
	burst   int
}

// newClientLimiter returns nil when rps is not positive; a nil limiter
// passes every request through.
func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	if cl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Liveness probes are never throttled.
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if !cl.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (cl *clientLimiter) allow(key string) bool {
	now := time.Now()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[key] = entry
		if len(cl.clients) > limiterPurgeAt {
			cl.purgeIdle(now)
		}
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}

// purgeIdle drops entries idle beyond limiterIdleTTL. Callers hold cl.mu.
func (cl *clientLimiter) purgeIdle(now time.Time) {
	for key, entry := range cl.clients {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(cl.clients, key)
		}
	}
}

// clientKey identifies the caller for rate limiting. The sessionID query
// parameter wins when present; POST bodies are not inspected here.
func clientKey(r *http.Request) string {
	if sessionID := r.URL.Query().Get("sessionID"); sessionID != "" {
		return sessionID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
