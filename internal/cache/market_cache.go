package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MarketCache is an in-memory TTL cache for provider responses.
type MarketCache struct {
	c       *ristretto.Cache
	ttl     time.Duration
	enabled bool
}

// New creates a cache. A disabled cache accepts writes and never hits.
func New(maxItems int64, ttl time.Duration, enabled bool) (*MarketCache, error) {
	if maxItems <= 0 {
		maxItems = 1 << 12
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &MarketCache{c: c, ttl: ttl, enabled: enabled}, nil
}

// Key builds a cache key from request parts.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "|")
}

func (m *MarketCache) Get(key string) (any, bool) {
	if m == nil || !m.enabled {
		return nil, false
	}
	return m.c.Get(key)
}

// Set stores val with the default TTL. The write becomes visible after the
// ristretto buffers drain; call Wait when the next read must observe it.
func (m *MarketCache) Set(key string, val any) {
	m.SetWithTTL(key, val, m.ttl)
}

func (m *MarketCache) SetWithTTL(key string, val any, ttl time.Duration) {
	if m == nil || !m.enabled || ttl <= 0 {
		return
	}
	m.c.SetWithTTL(key, val, 1, ttl)
}

func (m *MarketCache) Wait() {
	if m != nil {
		m.c.Wait()
	}
}

func (m *MarketCache) Del(key string) {
	if m != nil {
		m.c.Del(key)
	}
}

func (m *MarketCache) Clear() {
	if m != nil {
		m.c.Clear()
	}
}

func (m *MarketCache) Close() {
	if m != nil {
		m.c.Close()
	}
}

func (m *MarketCache) Enabled() bool { return m != nil && m.enabled }

func (m *MarketCache) TTL() time.Duration { return m.ttl }

// Stats 返回缓存命中统计
func (m *MarketCache) Stats() map[string]any {
	if m == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":     m.enabled,
		"ttl_seconds": int(m.ttl.Seconds()),
		"hits":        m.c.Metrics.Hits(),
		"misses":      m.c.Metrics.Misses(),
		"keys_added":  m.c.Metrics.KeysAdded(),
	}
}
