package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter decides whether another request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// MemoryLimiter is a per-process sliding-window limiter. Keys idle for a
// whole window are dropped.
type MemoryLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter creates an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{requests: make(map[string][]time.Time), now: time.Now}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int64, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Add(-window)
	if now.Sub(l.lastSweep) >= window {
		l.sweep(start)
		l.lastSweep = now
	}
	kept := l.requests[key][:0]
	for _, ts := range l.requests[key] {
		if ts.After(start) {
			kept = append(kept, ts)
		}
	}
	if int64(len(kept)) >= limit {
		l.requests[key] = kept
		return false, nil
	}
	l.requests[key] = append(kept, now)
	return true, nil
}

func (l *MemoryLimiter) sweep(start time.Time) {
	for key, ts := range l.requests {
		if len(ts) == 0 || !ts[len(ts)-1].After(start) {
			delete(l.requests, key)
		}
	}
}

// RateLimit limits requests per client IP. When the limiter fails the
// request is let through and the error logged. Forwarding headers are only
// read when trustProxy is set, i.e. behind a proxy that overwrites them.
func RateLimit(l Limiter, maxRequests int, window time.Duration, trustProxy bool, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			ok, err := l.Allow(r.Context(), ip, int64(maxRequests), window)
			if err != nil {
				logger.WithError(err).WithField("ip", ip).Warn("rate limiter unavailable")
				ok = true
			}
			if !ok {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
