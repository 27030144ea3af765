package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/adverant/nexus/manualqa/internal/errors"
)

// requireKey accepts either key via the x-api-key header or a
// Authorization: Bearer <key> header, matching the credential shapes
// clients commonly send for either scheme.
func requireKey(key string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			next(w, r)
			return
		}
		supplied := r.Header.Get("x-api-key")
		if supplied == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				supplied = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if supplied != key {
			respondError(w, errors.NewAuthError("missing or invalid API key"))
			return
		}
		next(w, r)
	}
}

// ipLimiters hands out a golang.org/x/time/rate limiter per client IP,
// creating one lazily on first use and reusing it across requests.
type ipLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	perIP    map[string]*rate.Limiter
}

func newIPLimiters(perMinute int) *ipLimiters {
	return &ipLimiters{
		limit: rate.Limit(float64(perMinute) / 60.0),
		burst: perMinute,
		perIP: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiters) forIP(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perIP[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.perIP[ip] = lim
	}
	return lim
}

func (l *ipLimiters) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.forIP(ip).Allow() {
			respondError(w, errors.NewRateLimitedError("rate limit exceeded, slow down"))
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
