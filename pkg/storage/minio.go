// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"doc-theme-go/internal/config"
	"doc-theme-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶是否存在，如果不存在则创建
	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// ObjectName 返回原始文件在存储桶中的对象名。
func ObjectName(docID, fileName string) string {
	return fmt.Sprintf("uploads/%s_%s", docID, fileName)
}

// UploadOriginal 将一份原始上传文件保存到对象存储，供后续重建索引时取回。
func UploadOriginal(ctx context.Context, bucketName, docID, fileName, localPath string) error {
	if MinioClient == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}
	objectName := ObjectName(docID, fileName)
	_, err := MinioClient.FPutObject(ctx, bucketName, objectName, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("上传原始文件到 MinIO 失败: %w", err)
	}
	return nil
}

// DownloadOriginal 将对象存储中的原始文件下载到本地路径。
func DownloadOriginal(ctx context.Context, bucketName, docID, fileName, localPath string) error {
	if MinioClient == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}
	objectName := ObjectName(docID, fileName)
	object, err := MinioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("从 MinIO 获取对象失败: %w", err)
	}
	defer object.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("创建本地文件失败: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, object); err != nil {
		return fmt.Errorf("写入本地文件失败: %w", err)
	}
	return nil
}
