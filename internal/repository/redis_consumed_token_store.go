package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 期限直前のトークンでも記録が即座に消えないようにするための最小TTL
const minConsumedTokenTTL = time.Second

// RedisConsumedTokenStore はRedisを使用した使用済みトークン台帳。
// キーはトークンの有効期限と同時にTTLで失効する。
type RedisConsumedTokenStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisConsumedTokenStore はRedisConsumedTokenStoreを生成する。
// prefixが空の場合は"accountd:reset"を使用する。
func NewRedisConsumedTokenStore(client redis.UniversalClient, prefix string) *RedisConsumedTokenStore {
	if prefix == "" {
		prefix = "accountd:reset"
	}
	return &RedisConsumedTokenStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisConsumedTokenStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

// Consume はSET NXでtokenHashを記録する。
func (s *RedisConsumedTokenStore) Consume(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl < minConsumedTokenTTL {
		ttl = minConsumedTokenTTL
	}

	ok, err := s.client.SetNX(ctx, s.key(tokenHash), now.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record consumed token: %w", err)
	}
	return ok, nil
}

// compile-time interface check
var _ ConsumedTokenStore = (*RedisConsumedTokenStore)(nil)
