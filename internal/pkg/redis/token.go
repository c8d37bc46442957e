package redis

import (
	"Parley/internal/pkg/consts"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore 记录已注销 token 的签名
type TokenStore struct {
	rdb redis.Cmdable
}

func NewTokenStore(rdb redis.Cmdable) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Revoke ttl 取 token 剩余有效期
func (s *TokenStore) Revoke(ctx context.Context, signature string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, consts.RevokedTokenKey+signature, 1, ttl).Err()
}

func (s *TokenStore) IsRevoked(ctx context.Context, signature string) (bool, error) {
	n, err := s.rdb.Exists(ctx, consts.RevokedTokenKey+signature).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
