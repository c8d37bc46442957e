package job

import (
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"
)

const mediaPurgeBatch = 200

type ObjectRemover interface {
	DeleteFile(ctx context.Context, objectName string) error
}

// TempMediaIndex 未被消息引用的上传记录
type TempMediaIndex interface {
	All(ctx context.Context) (map[string]redis.MediaTempMetadata, error)
	Remove(ctx context.Context, objectKey string) error
}

// MediaCleanupJob 清理过期的临时上传以及超过保留期的消息附件
type MediaCleanupJob struct {
	storage     ObjectRemover
	tempIndex   TempMediaIndex
	messageRepo mongo.MessageRepo
	retention   time.Duration
	tempTTL     time.Duration
	now         func() time.Time
}

func NewMediaCleanupJob(storage ObjectRemover, tempIndex TempMediaIndex, messageRepo mongo.MessageRepo, retentionDays, tempTTLHours int) *MediaCleanupJob {
	return &MediaCleanupJob{
		storage:     storage,
		tempIndex:   tempIndex,
		messageRepo: messageRepo,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		tempTTL:     time.Duration(tempTTLHours) * time.Hour,
		now:         time.Now,
	}
}

func (s *MediaCleanupJob) Run() {
	ctx := context.Background()
	log.Info("start media cleanup job")

	temp := s.cleanTemp(ctx)
	purged := s.purgeExpired(ctx)

	if temp > 0 || purged > 0 {
		log.Info("media cleanup job finished", "temp_cleaned", temp, "media_purged", purged)
	}
}

func (s *MediaCleanupJob) cleanTemp(ctx context.Context) int {
	allMedia, err := s.tempIndex.All(ctx)
	if err != nil {
		log.Error("failed to get media temp hash", "err", err)
		return 0
	}

	deadline := s.now().Add(-s.tempTTL).Unix()
	count := 0
	for fileKey, meta := range allMedia {
		if meta.CreatedAt > deadline {
			continue
		}
		if err = s.storage.DeleteFile(ctx, fileKey); err != nil {
			log.Error("failed to delete expired file from minio", "fileKey", fileKey, "err", err)
			continue
		}
		if meta.ThumbnailKey != "" {
			if err = s.storage.DeleteFile(ctx, meta.ThumbnailKey); err != nil {
				log.Warn("failed to delete expired thumbnail", "fileKey", meta.ThumbnailKey, "err", err)
			}
		}
		if err = s.tempIndex.Remove(ctx, fileKey); err != nil {
			log.Error("failed to remove media token from redis", "fileKey", fileKey, "err", err)
		}
		count++
		log.Info("cleanup expired media resource", "fileKey", fileKey, "mime", meta.MimeType)
	}
	return count
}

// purgeExpired 消息本身保留, 只删除对象并打上 purged 标记
func (s *MediaCleanupJob) purgeExpired(ctx context.Context) int {
	if s.retention <= 0 {
		return 0
	}
	before := s.now().Add(-s.retention)
	total := 0
	for {
		batch, err := s.messageRepo.FindExpiredMedia(ctx, before, mediaPurgeBatch)
		if err != nil {
			log.Error("failed to query expired media", "err", err)
			return total
		}

		purged := 0
		for _, msg := range batch {
			if err = s.purgeOne(ctx, msg); err != nil {
				log.Error("failed to purge media", "messageId", msg.ID.Hex(), "err", err)
				continue
			}
			purged++
		}
		total += purged

		// 整批失败时停止, 避免反复拉取同一批
		if len(batch) < mediaPurgeBatch || purged == 0 {
			return total
		}
	}
}

func (s *MediaCleanupJob) purgeOne(ctx context.Context, msg *mongo.Message) error {
	for _, key := range []string{msg.Media.Key, msg.Media.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.storage.DeleteFile(ctx, key); err != nil {
			return err
		}
	}
	return s.messageRepo.MarkMediaPurged(ctx, msg.ID)
}
