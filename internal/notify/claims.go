package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore records which events were already announced
type ClaimStore interface {
	// Claim marks key as announced and reports whether it was new
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets a claim so the event can be announced again
	Release(ctx context.Context, key string) error
}

// RedisClaims keeps claims in redis so they survive restarts and are shared between replicas
type RedisClaims struct {
	client *redis.Client
}

// NewRedisClaims creates a redis claim store
func NewRedisClaims(client *redis.Client) *RedisClaims {
	return &RedisClaims{client: client}
}

func (c *RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisClaims) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}

// MemoryClaims keeps claims in process memory
type MemoryClaims struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryClaims creates an in-memory claim store
func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{expires: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryClaims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.expires[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}

	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.expires[key] = exp

	// Drop expired entries so the map does not grow without bound.
	for k, e := range c.expires {
		if !e.IsZero() && !now.Before(e) {
			delete(c.expires, k)
		}
	}
	return true, nil
}

func (c *MemoryClaims) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.expires, key)
	return nil
}
