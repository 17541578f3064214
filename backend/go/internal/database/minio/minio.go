package minio

import (
	"context"
	"fmt"
	"strings"

	"pdf_rag/backend/go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewClient 使用存储配置创建一个 S3 兼容的客户端。
// 它不会发起网络请求, 凭证或存储桶的问题会在第一次读写时暴露。
func NewClient(cfg config.StorageConfig) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// minio-go 只接受 host[:port], 去掉可能带上的协议前缀。
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""), // 静态凭证。
		Secure: cfg.UseHTTPS(),                                            // 是否使用 HTTPS。
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("无法创建 S3 客户端: %w", err)
	}
	return c, nil
}

// BucketChecker 是 *minio.Client 中健康检查需要的部分。
type BucketChecker interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// HealthCheck 检查存储桶是否存在且可以访问。
func HealthCheck(ctx context.Context, c BucketChecker, bucket string) error {
	ok, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("S3 健康检查失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("存储桶 %q 不存在", bucket)
	}
	return nil
}
