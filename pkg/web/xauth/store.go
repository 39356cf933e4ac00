package xauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/apikit/pkg/context/xctx"
)

// 编译时接口检查
var (
	_ TokenStore = (*MemoryTokenStore)(nil)
	_ TokenStore = (*RedisTokenStore)(nil)
)

// =============================================================================
// MemoryTokenStore
// =============================================================================

type memoryToken struct {
	principal *xctx.Principal
	expiresAt time.Time // 零值表示永不过期
}

// MemoryTokenStore 是内存令牌表，适用于测试与单实例部署。
// 并发安全；过期令牌在查找时惰性清理。
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]memoryToken
}

// NewMemoryTokenStore 创建空的内存令牌表。
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]memoryToken),
	}
}

// Save 登记令牌；ttl <= 0 表示永不过期。
func (s *MemoryTokenStore) Save(_ context.Context, key string, principal *xctx.Principal, ttl time.Duration) error {
	entry := memoryToken{principal: principal.Clone()}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.tokens[key] = entry
	s.mu.Unlock()
	return nil
}

// Revoke 吊销令牌，不存在时为 no-op。
func (s *MemoryTokenStore) Revoke(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.tokens, key)
	s.mu.Unlock()
	return nil
}

// Lookup 实现 TokenStore 接口。
func (s *MemoryTokenStore) Lookup(_ context.Context, key string) (*xctx.Principal, error) {
	s.mu.RLock()
	entry, ok := s.tokens[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrTokenNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// 二次检查：期间可能已被重新 Save
		if current, ok := s.tokens[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.tokens, key)
		}
		s.mu.Unlock()
		return nil, ErrTokenNotFound
	}
	return entry.principal.Clone(), nil
}

// =============================================================================
// RedisTokenStore
// =============================================================================

// DefaultTokenKeyPrefix 是 Redis 令牌键的默认前缀。
const DefaultTokenKeyPrefix = "apikit:token:"

// RedisTokenStore 把令牌映射存放在 Redis。
//
// 键为 <prefix> + SHA-256(令牌) 的十六进制，值为 JSON 编码的主体。
// 存散列而非令牌本身，Redis 快照泄露时拿不到可用凭据。
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisTokenStoreOption 定义 RedisTokenStore 的配置选项。
type RedisTokenStoreOption func(*RedisTokenStore)

// WithTokenKeyPrefix 设置令牌键前缀，默认 "apikit:token:"。
func WithTokenKeyPrefix(prefix string) RedisTokenStoreOption {
	return func(s *RedisTokenStore) {
		s.prefix = prefix
	}
}

// NewRedisTokenStore 创建 Redis 令牌存储。client 不可为 nil。
func NewRedisTokenStore(client redis.UniversalClient, opts ...RedisTokenStoreOption) (*RedisTokenStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &RedisTokenStore{
		client: client,
		prefix: DefaultTokenKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save 登记令牌；ttl <= 0 表示永不过期。
func (s *RedisTokenStore) Save(ctx context.Context, key string, principal *xctx.Principal, ttl time.Duration) error {
	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("xauth: marshal principal: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("xauth: save token: %w", err)
	}
	return nil
}

// Revoke 吊销令牌，不存在时为 no-op。
func (s *RedisTokenStore) Revoke(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("xauth: revoke token: %w", err)
	}
	return nil
}

// Lookup 实现 TokenStore 接口。
func (s *RedisTokenStore) Lookup(ctx context.Context, key string) (*xctx.Principal, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("xauth: lookup token: %w", err)
	}

	var principal xctx.Principal
	if err := json.Unmarshal(data, &principal); err != nil {
		return nil, fmt.Errorf("xauth: unmarshal principal: %w", err)
	}
	return &principal, nil
}

func (s *RedisTokenStore) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + hex.EncodeToString(sum[:])
}
