package redis

import (
	"Parley/internal/pkg/consts"
	"context"
	log "log/slog"

	"github.com/redis/go-redis/v9"
)

// MediaTempMetadata 已上传但尚未被消息引用的对象
type MediaTempMetadata struct {
	UserID       uint64 `json:"user_id"`
	MimeType     string `json:"mime_type"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// MediaTempIndex 维护 media:temp hash, field 为对象 key
type MediaTempIndex struct {
	rdb redis.Cmdable
}

func NewMediaTempIndex(rdb redis.Cmdable) *MediaTempIndex {
	return &MediaTempIndex{rdb: rdb}
}

func (s *MediaTempIndex) Track(ctx context.Context, objectKey string, meta MediaTempMetadata) error {
	return HSetJSON(ctx, s.rdb, consts.MediaTempKey, objectKey, meta)
}

// Attach 对象被消息引用后不再参与临时清理
func (s *MediaTempIndex) Attach(ctx context.Context, objectKey string) error {
	return s.rdb.HDel(ctx, consts.MediaTempKey, objectKey).Err()
}

func (s *MediaTempIndex) All(ctx context.Context) (map[string]MediaTempMetadata, error) {
	return HGetAllJSON[MediaTempMetadata](ctx, s.rdb, consts.MediaTempKey, func(field string, err error) {
		log.WarnContext(ctx, "invalid media meta format", "fileKey", field, "err", err)
	})
}

func (s *MediaTempIndex) Remove(ctx context.Context, objectKey string) error {
	return s.rdb.HDel(ctx, consts.MediaTempKey, objectKey).Err()
}
