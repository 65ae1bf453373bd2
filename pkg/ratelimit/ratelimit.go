// Package ratelimit caps requests per client identity per hour.
package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ujjwalredd/Axiomeer/pkg/metrics"
)

// ClientHeader names the request header carrying the caller identity.
const ClientHeader = "X-Client-ID"

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a set of per-key token buckets refilling perHour tokens per
// hour, with a burst of perHour.
type Limiter struct {
	mu              sync.Mutex
	perHour         int
	limit           rate.Limit
	entries         map[string]*entry
	entryTTL        time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// New creates a limiter. perHour <= 0 disables limiting.
func New(perHour int) *Limiter {
	l := &Limiter{
		perHour:         perHour,
		entries:         make(map[string]*entry),
		entryTTL:        2 * time.Hour,
		cleanupInterval: 10 * time.Minute,
		now:             time.Now,
	}
	if perHour > 0 {
		l.limit = rate.Every(time.Hour / time.Duration(perHour))
	}
	l.lastCleanup = l.now()
	return l
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) Decision {
	if l == nil || l.perHour <= 0 {
		return Decision{Allowed: true, Limit: -1, Remaining: -1}
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.cleanupInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.entryTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.perHour)}
		l.entries[key] = e
	}
	e.lastSeen = now

	d := Decision{Limit: l.perHour}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d
	}
	d.Allowed = true
	d.Remaining = int(math.Floor(e.limiter.TokensAt(now)))
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d
}

// Key identifies the caller: the client header when present, otherwise
// the remote IP.
func Key(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(ClientHeader)); id != "" {
		return "client:" + id
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// Middleware rejects callers over their budget with 429 and sets the
// X-RateLimit-* headers on every limited response.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := l.Allow(Key(c))
		if d.Limit < 0 {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			c.Next()
			return
		}

		reset := int(d.RetryAfter.Round(time.Second) / time.Second)
		if reset < 1 {
			reset = 1
		}
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))
		c.Header("Retry-After", strconv.Itoa(reset))
		metrics.RecordRateLimited()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail": fmt.Sprintf("Rate limit exceeded. Limit: %d requests per hour. Try again in %d seconds.", d.Limit, reset),
		})
	}
}
