package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	doRequest(h, "10.0.0.1:1234")
	doRequest(h, "10.0.0.1:1234")
	rec := doRequest(h, "10.0.0.1:1234")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:9999").Code)
}

func TestRateLimit_SamePortIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1111").Code)
	// Different ephemeral port, same client.
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:2222").Code)
}

func TestRateLimit_ZeroMaxDisables(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 0, Window: time.Minute})(okHandler())

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	}
}

func TestRateLimit_WindowResets(t *testing.T) {
	limiter := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		clients: make(map[string]*clientWindow),
	}

	now := time.Now()
	ok, _ := limiter.allow("c1", now)
	require.True(t, ok)

	ok, retryAfter := limiter.allow("c1", now.Add(30*time.Second))
	require.False(t, ok)
	assert.LessOrEqual(t, retryAfter, 30)

	ok, _ = limiter.allow("c1", now.Add(61*time.Second))
	assert.True(t, ok)
}

func TestRateLimit_CleanupEvictsIdleClients(t *testing.T) {
	limiter := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		clients: make(map[string]*clientWindow),
	}

	now := time.Now()
	limiter.allow("stale", now)
	limiter.allow("fresh", now.Add(90*time.Second))

	limiter.cleanup(now.Add(2 * time.Minute))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "stale")
	assert.Contains(t, limiter.clients, "fresh")
}
