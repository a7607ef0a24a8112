package access

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionCache caches AccessDecision by a composite key, per
// EnhancedSecurityManager's decision_cache: one get/put surface, with TTL
// and 2*TTL stale-entry eviction left to the implementation.
type DecisionCache interface {
	Get(ctx context.Context, key string) (AccessDecision, bool)
	Put(ctx context.Context, key string, decision AccessDecision, ttl time.Duration)
	Clear(ctx context.Context)
}

type cacheEntry struct {
	decision AccessDecision
	expires  time.Time
}

// InProcessCache is the default DecisionCache: a mutex-guarded map with a
// lazy 2*TTL eviction sweep on every Put, mirroring the original's
// `cache.retain(|_, (_, timestamp)| timestamp.elapsed() < cache_ttl * 2)`.
type InProcessCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewInProcessCache() *InProcessCache {
	return &InProcessCache{entries: make(map[string]cacheEntry)}
}

func (c *InProcessCache) Get(ctx context.Context, key string) (AccessDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return AccessDecision{}, false
	}
	return entry.decision, true
}

func (c *InProcessCache) Put(ctx context.Context, key string, decision AccessDecision, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.entries[key] = cacheEntry{decision: decision, expires: now.Add(ttl)}
	for k, e := range c.entries {
		if now.After(e.expires.Add(ttl)) {
			delete(c.entries, k)
		}
	}
}

func (c *InProcessCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// RedisCache is an optional DecisionCache for multi-instance deployments
// where decisions must be shared across processes, using Redis's own key
// TTL instead of a manual sweep.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "llmspell:access:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (AccessDecision, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return AccessDecision{}, false
	}
	var decision AccessDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return AccessDecision{}, false
	}
	return decision, true
}

func (c *RedisCache) Put(ctx context.Context, key string, decision AccessDecision, ttl time.Duration) {
	raw, err := json.Marshal(decision)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+key, raw, ttl)
}

func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// cacheKey reproduces EnhancedSecurityManager's cache-key shape plus the
// SPEC_FULL.md-resolved Open Question: max(policy.version) across every
// registered policy is folded in, so a policy version bump invalidates
// stale cached decisions without an explicit Clear.
func cacheKey(sec SecurityContext, operation, resource string, maxVersion uint32) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:v%d",
		sec.Principal, sec.TenantID, operation, resource, joinRoles(sec.Roles), maxVersion)
}

func joinRoles(roles []string) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
