package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(l *Limiter) *time.Time {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastCleanup = now
	return &now
}

func TestAllowBurstThenRefill(t *testing.T) {
	l := New(3)
	now := fixedClock(l)

	for i := 0; i < 3; i++ {
		d := l.Allow("c1")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d := l.Allow("c1")
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(20*time.Minute), float64(d.RetryAfter), float64(time.Millisecond))

	assert.True(t, l.Allow("c2").Allowed, "keys are independent")

	*now = now.Add(21 * time.Minute)
	assert.True(t, l.Allow("c1").Allowed)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l := New(0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("x").Allowed)
	}
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("x").Allowed)
}

func TestCleanupDropsIdleKeys(t *testing.T) {
	l := New(5)
	now := fixedClock(l)
	l.Allow("idle")
	*now = now.Add(3 * time.Hour)
	l.Allow("fresh")
	assert.NotContains(t, l.entries, "idle")
	assert.Contains(t, l.entries, "fresh")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(1)
	fixedClock(l)

	r := gin.New()
	r.Use(Middleware(l))
	r.POST("/shop", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/shop", nil)
		req.Header.Set(ClientHeader, client)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do("alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Equal(t, "3600", w.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	assert.Equal(t, http.StatusOK, do("bob").Code)
}
