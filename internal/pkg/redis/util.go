package redis

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// HSetJSON 以 JSON 序列化写入 hash 字段
func HSetJSON(ctx context.Context, rdb redis.Cmdable, key, field string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.HSet(ctx, key, field, data).Err()
}

// HGetAllJSON 读取整个 hash 并逐字段反序列化, 坏数据交给 onBad 处理
func HGetAllJSON[T any](ctx context.Context, rdb redis.Cmdable, key string, onBad func(field string, err error)) (map[string]T, error) {
	raw, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for field, val := range raw {
		var v T
		if err = json.Unmarshal([]byte(val), &v); err != nil {
			if onBad != nil {
				onBad(field, err)
			}
			continue
		}
		out[field] = v
	}
	return out, nil
}

// SetJSON 带过期时间写入
func SetJSON(ctx context.Context, rdb redis.Cmdable, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}
