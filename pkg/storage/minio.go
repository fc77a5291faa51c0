// Package storage 提供了与对象存储服务（如 MinIO）交互的功能，用于归档原始文档。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive 把原始文档保存在 documents/<namespace>/<filename> 下。
type Archive struct {
	client     *minio.Client
	bucketName string
}

// NewArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewArchive(ctx context.Context, cfg config.MinIOConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("[MinIO] MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("[MinIO] 存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("[MinIO] 存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &Archive{client: client, bucketName: cfg.BucketName}, nil
}

// ObjectKey 返回文档在存储桶中的对象名。
func ObjectKey(namespace, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return fmt.Sprintf("documents/%s/%s", namespace, base)
}

// Put 上传原始文档并返回对象名。
func (a *Archive) Put(ctx context.Context, namespace, fileName string, content []byte) (string, error) {
	key := ObjectKey(namespace, fileName)
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传文档到 MinIO 失败: %w", err)
	}
	return key, nil
}

// DeleteNamespace 删除 namespace 下归档的全部对象。
func (a *Archive) DeleteNamespace(ctx context.Context, namespace string) error {
	prefix := fmt.Sprintf("documents/%s/", namespace)
	for obj := range a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("列举 MinIO 对象失败: %w", obj.Err)
		}
		if err := a.client.RemoveObject(ctx, a.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除 MinIO 对象 %s 失败: %w", obj.Key, err)
		}
	}
	return nil
}

// PresignedURL generates a presigned URL for a given object.
func (a *Archive) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := a.client.PresignedGetObject(ctx, a.bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("[MinIO] 生成预签名 URL 失败: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
