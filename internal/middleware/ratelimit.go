package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCredentialRPM = 10
	limiterSweepSize     = 1000
	limiterIdleTTL       = 10 * time.Minute
)

// credentialPaths take a password in the body and draw from the strict bucket.
var credentialPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/users/open",
}

type clientBuckets struct {
	general    *rate.Limiter
	credential *rate.Limiter
	lastSeen   time.Time
}

// RateLimitMiddleware keeps a general and a credential token bucket per client IP.
type RateLimitMiddleware struct {
	generalRPM    int
	credentialRPM int

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

// NewRateLimitMiddleware treats generalRPM <= 0 as unlimited. The credential
// bucket is always on and falls back to 10 per minute.
func NewRateLimitMiddleware(generalRPM int, credentialRPM int) *RateLimitMiddleware {
	if credentialRPM <= 0 {
		credentialRPM = defaultCredentialRPM
	}

	return &RateLimitMiddleware{
		generalRPM:    generalRPM,
		credentialRPM: credentialRPM,
		clients:       map[string]*clientBuckets{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buckets := m.bucketsFor(requestClientIP(r))

		limiter := buckets.general
		if isCredentialRequest(r) {
			limiter = buckets.credential
		}

		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErrorJSON(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isCredentialRequest(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimSuffix(strings.ToLower(r.URL.Path), "/")
	for _, p := range credentialPaths {
		if path == p {
			return true
		}
	}
	return false
}

func (m *RateLimitMiddleware) bucketsFor(clientIP string) *clientBuckets {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if b, ok := m.clients[clientIP]; ok {
		b.lastSeen = now
		return b
	}

	m.sweepLocked(now)

	b := &clientBuckets{
		credential: perMinute(m.credentialRPM),
		lastSeen:   now,
	}
	if m.generalRPM > 0 {
		b.general = perMinute(m.generalRPM)
	}
	m.clients[clientIP] = b
	return b
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	if len(m.clients) < limiterSweepSize {
		return
	}

	cutoff := now.Add(-limiterIdleTTL)
	for ip, b := range m.clients {
		if b.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}
