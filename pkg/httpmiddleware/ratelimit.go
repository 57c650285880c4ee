package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables limiting.
	Max int
	// Window is the duration of the counting window.
	Window time.Duration
}

// clientWindow tracks request counts for one client in the current window.
type clientWindow struct {
	count       int
	windowStart time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*clientWindow
}

// allow reports whether a request from the client is within the limit, and
// the seconds remaining until the window resets when it is not.
func (l *rateLimiter) allow(client string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[client]
	if !ok || now.Sub(w.windowStart) >= l.cfg.Window {
		l.clients[client] = &clientWindow{count: 1, windowStart: now}
		return true, 0
	}

	if w.count >= l.cfg.Max {
		retryAfter := int(l.cfg.Window.Seconds() - now.Sub(w.windowStart).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// cleanup drops clients whose window has long expired.
func (l *rateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for client, w := range l.clients {
		if now.Sub(w.windowStart) >= 2*l.cfg.Window {
			delete(l.clients, client)
		}
	}
}

// RateLimit returns a middleware limiting each client (by remote IP) to
// cfg.Max requests per cfg.Window. Rejected requests get 429 with a
// Retry-After header. A background goroutine evicts idle clients until ctx
// is cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	limiter := &rateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientWindow),
	}

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				limiter.cleanup(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Max <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := limiter.allow(clientKey(r), time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the client by remote IP, ignoring the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
