package minio

import (
	"Parley/internal/api/config"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store MinIO 客户端与公开访问地址
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// Init 初始化 MinIO 客户端并确保存储桶存在且可公开读取
func Init(cfg config.MinIOConfig) (*Store, error) {
	endpoint, useSSL := cfg.InternalEndpoint, cfg.InternalUseSSL
	if endpoint == "" {
		endpoint, useSSL = cfg.ExternalEndpoint, true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	external := cfg.ExternalEndpoint
	if external == "" {
		external = endpoint
	}
	protocol := "http"
	if cfg.ExternalUseSSL {
		protocol = "https"
	}

	log.Info("MinIO initialized successfully", "bucket", cfg.Bucket)
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: fmt.Sprintf("%s://%s/%s/", protocol, external, cfg.Bucket),
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if exists {
		return nil
	}

	if err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}

	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
	if err = client.SetBucketPolicy(ctx, bucket, policy); err != nil {
		return fmt.Errorf("设置存储桶公开读取策略失败: %w", err)
	}
	log.Info("已创建媒体存储桶", "bucket", bucket)
	return nil
}
