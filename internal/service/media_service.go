package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/pkg/util"
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"mime/multipart"
	"path"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage 媒体对象存储
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
	GetPublicURL(objectName string) string
	KeyFromURL(url string) (string, bool)
}

// MediaTempIndex 已上传未引用对象的索引
type MediaTempIndex interface {
	Track(ctx context.Context, objectKey string, meta redis.MediaTempMetadata) error
	Attach(ctx context.Context, objectKey string) error
}

// MediaService 上传附件, 并在消息引用时认领
type MediaService interface {
	Upload(ctx context.Context, userID uint64, file *multipart.FileHeader) (*dto.MediaUploadDTO, error)
	Claim(ctx context.Context, media *dto.MediaDTO) *mongo.Media
}

type mediaServiceImpl struct {
	storage        ObjectStorage
	tempIndex      MediaTempIndex
	maxFileSize    int64
	thumbnailWidth int
}

func NewMediaService(storage ObjectStorage, tempIndex MediaTempIndex, maxFileSize int64, thumbnailWidth int) MediaService {
	return &mediaServiceImpl{
		storage:        storage,
		tempIndex:      tempIndex,
		maxFileSize:    maxFileSize,
		thumbnailWidth: thumbnailWidth,
	}
}

func (s *mediaServiceImpl) Upload(ctx context.Context, userID uint64, file *multipart.FileHeader) (*dto.MediaUploadDTO, error) {
	if file.Size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	reader, err := file.Open()
	if err != nil {
		return nil, ErrParamInvalid
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(io.LimitReader(reader, s.maxFileSize+1))
	if err != nil {
		return nil, ErrParamInvalid
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	// 以文件头为准, 不信任客户端声明的类型
	contentType, ext := util.GetSafeContentType(data)
	msgType, ok := util.MessageTypeForMime(contentType)
	if !ok {
		log.InfoContext(ctx, "rejected upload", "mime", contentType, "filename", file.Filename)
		return nil, ErrFileNotSupported
	}
	if ext == "" {
		ext = path.Ext(file.Filename)
	}

	prefix := fmt.Sprintf("%s/%s/%d/", msgType, time.Now().Format("2006/01/02"), userID)
	objectName := prefix + uuid.NewString() + ext
	key, err := s.storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, err
	}

	out := &dto.MediaUploadDTO{
		URL:      s.storage.GetPublicURL(key),
		Filename: file.Filename,
		MimeType: contentType,
		Size:     int64(len(data)),
		Type:     msgType,
	}

	var thumbKey string
	if msgType == consts.MessageTypeImage {
		thumbKey = s.uploadThumbnail(ctx, prefix, data)
		if thumbKey != "" {
			out.Thumbnail = s.storage.GetPublicURL(thumbKey)
		}
	}

	meta := redis.MediaTempMetadata{
		UserID:       userID,
		MimeType:     contentType,
		ThumbnailKey: thumbKey,
		CreatedAt:    time.Now().Unix(),
	}
	if err = s.tempIndex.Track(ctx, key, meta); err != nil {
		log.WarnContext(ctx, "failed to track temp media", "fileKey", key, "err", err)
	}

	log.InfoContext(ctx, "media upload success", "fileKey", key, "type", contentType)
	return out, nil
}

// uploadThumbnail 缩略图失败不影响原图上传
func (s *mediaServiceImpl) uploadThumbnail(ctx context.Context, prefix string, data []byte) string {
	thumb, err := util.MakeThumbnail(data, s.thumbnailWidth)
	if err != nil {
		log.WarnContext(ctx, "failed to build thumbnail", "err", err)
		return ""
	}
	key, err := s.storage.UploadFile(ctx, prefix+"thumb_"+uuid.NewString()+".jpg", bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg")
	if err != nil {
		log.WarnContext(ctx, "failed to upload thumbnail", "err", err)
		return ""
	}
	return key
}

// Claim 本桶内的对象被消息引用后移出临时索引; 外部地址原样保存
func (s *mediaServiceImpl) Claim(ctx context.Context, media *dto.MediaDTO) *mongo.Media {
	out := &mongo.Media{
		URL:       media.URL,
		Filename:  media.Filename,
		MimeType:  media.MimeType,
		Size:      media.Size,
		Duration:  media.Duration,
		Thumbnail: media.Thumbnail,
	}
	if key, ok := s.storage.KeyFromURL(media.URL); ok {
		out.Key = key
		if err := s.tempIndex.Attach(ctx, key); err != nil {
			log.WarnContext(ctx, "failed to attach media", "fileKey", key, "err", err)
		}
	}
	if media.Thumbnail != "" {
		if key, ok := s.storage.KeyFromURL(media.Thumbnail); ok {
			out.ThumbnailKey = key
		}
	}
	return out
}
