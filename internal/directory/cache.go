package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"appraiser-gateway/internal/platform/redis"
)

// RegistrationCache is a read-through cache in front of the directory.
// Entries expire quickly; the directory stays authoritative.
type RegistrationCache interface {
	Get(ctx context.Context, name string, unit OrgUnitRef) (BoundRegistration, bool)
	Put(ctx context.Context, name string, unit OrgUnitRef, reg BoundRegistration)
}

// Verification is case-insensitive, so the key must be too or casing
// variants of one name fill separate entries.
func cacheKey(name string, unit OrgUnitRef) string {
	return fmt.Sprintf("directory:registration:%d:%d:%s", unit.BankID, unit.BranchID, strings.ToLower(name))
}

// RedisCache stores registrations in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, name string, unit OrgUnitRef) (BoundRegistration, bool) {
	raw, err := c.client.Get(ctx, cacheKey(name, unit)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return BoundRegistration{}, false
	}
	if err != nil {
		// A failing cache degrades to a directory lookup, never an error.
		return BoundRegistration{}, false
	}
	var reg BoundRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return BoundRegistration{}, false
	}
	return reg, true
}

func (c *RedisCache) Put(ctx context.Context, name string, unit OrgUnitRef, reg BoundRegistration) {
	raw, err := json.Marshal(reg)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(name, unit), raw, c.ttl).Err()
}

// MemoryCache is the in-process cache used when Redis is not configured and
// in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	reg       BoundRegistration
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, name string, unit OrgUnitRef) (BoundRegistration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey(name, unit)]
	if !ok || time.Now().After(entry.expiresAt) {
		return BoundRegistration{}, false
	}
	return entry.reg, true
}

func (c *MemoryCache) Put(_ context.Context, name string, unit OrgUnitRef, reg BoundRegistration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(name, unit)] = memoryEntry{reg: reg, expiresAt: time.Now().Add(c.ttl)}
}
