// Package cache memoizes shop results and provider payloads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultMaxEntries = 1024

// Cache stores opaque values with a TTL.
type Cache interface {
	// Get returns the value for key and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A ttl <= 0 is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process LRU with per-entry expiry checked on read.
type Memory struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time
}

// NewMemory creates a Memory cache holding at most maxEntries values.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c, err := lru.New[string, entry](maxEntries)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Memory{lru: c, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, entry{value: append([]byte(nil), value...), expiresAt: m.now().Add(ttl)})
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Open returns a Redis cache when redisURL is set and reachable and a
// Memory cache otherwise.
func Open(ctx context.Context, redisURL string, maxEntries int, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redisURL == "" {
		return NewMemory(maxEntries)
	}
	r, err := NewRedis(redisURL)
	if err == nil {
		err = r.Ping(ctx)
		if err == nil {
			logger.Info("redis cache connected")
			return r
		}
		_ = r.Close()
	}
	logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
	return NewMemory(maxEntries)
}

// GetJSON decodes a cached JSON value into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Fingerprint derives a deterministic key from prefix and v. Map keys are
// sorted by encoding/json so equal inputs always collide.
func Fingerprint(prefix string, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return prefix + ":" + fmt.Sprintf("%v", v)
	}
	return prefix + ":" + string(data)
}
