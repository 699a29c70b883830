package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores gateway access tokens so replicas share one token
// instead of each requesting their own.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisTokenCache struct {
	client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (r *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	tok, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get token: %w", err)
	}
	return tok, true, nil
}

func (r *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (r *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}

type memoryToken struct {
	value   string
	expires time.Time
}

// MemoryTokenCache is the single-process fallback used when no Redis
// address is configured.
type MemoryTokenCache struct {
	sync.RWMutex
	tokens map[string]memoryToken
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]memoryToken), now: time.Now}
}

func (m *MemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	m.RLock()
	tok, ok := m.tokens[key]
	m.RUnlock()
	if !ok || !m.now().Before(tok.expires) {
		return "", false, nil
	}
	return tok.value, true, nil
}

func (m *MemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	m.Lock()
	m.tokens[key] = memoryToken{value: token, expires: m.now().Add(ttl)}
	m.Unlock()
	return nil
}

func (m *MemoryTokenCache) Delete(_ context.Context, key string) error {
	m.Lock()
	delete(m.tokens, key)
	m.Unlock()
	return nil
}
