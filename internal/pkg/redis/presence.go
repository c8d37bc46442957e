package redis

import (
	"Parley/internal/pkg/consts"
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence 在线状态快照
type Presence struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceCache 在线状态缓存, MySQL 仍是权威存储
type PresenceCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewPresenceCache(rdb redis.Cmdable, ttl time.Duration) *PresenceCache {
	return &PresenceCache{rdb: rdb, ttl: ttl}
}

func presenceKey(userID uint64) string {
	return consts.PresenceKey + strconv.FormatUint(userID, 10)
}

// SetOnline 在线记录带 TTL, 进程崩溃后自然过期
func (s *PresenceCache) SetOnline(ctx context.Context, userID uint64, at time.Time) error {
	return SetJSON(ctx, s.rdb, presenceKey(userID), Presence{Online: true, LastSeen: at}, s.ttl)
}

// SetOffline 离线记录长期保留 lastSeen
func (s *PresenceCache) SetOffline(ctx context.Context, userID uint64, lastSeen time.Time) error {
	return SetJSON(ctx, s.rdb, presenceKey(userID), Presence{Online: false, LastSeen: lastSeen}, 0)
}
