// Package service 实现了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doc-theme-go/internal/chunker"
	"doc-theme-go/internal/config"
	"doc-theme-go/internal/extract"
	"doc-theme-go/internal/index"
	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/storage"
	"doc-theme-go/pkg/tasks"

	"github.com/google/uuid"
)

// IngestService 接口定义了文档摄取相关的业务操作。
type IngestService interface {
	// Ingest 摄取一份本地文件：提取文本、落盘工件、分块入索引。
	Ingest(ctx context.Context, localPath, originalFileName string) (*model.Document, error)
	// Reprocess 从对象存储取回原始文件并重新摄取（Kafka 任务入口）。
	Reprocess(ctx context.Context, task tasks.ReindexTask) error
}

// ingestService 是 IngestService 接口的实现。
type ingestService struct {
	extractor *extract.Extractor
	store     index.Store
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(extractor *extract.Extractor, store index.Store) IngestService {
	return &ingestService{extractor: extractor, store: store}
}

// Ingest 执行完整的文档摄取流程。
// 对象存储归档是尽力而为：失败只记日志，不影响本次摄取结果。
func (s *ingestService) Ingest(ctx context.Context, localPath, originalFileName string) (*model.Document, error) {
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(originalFileName)), ".")
	if !extract.Supported(fileType) {
		return nil, fmt.Errorf("%w: .%s", extract.ErrUnsupportedFormat, fileType)
	}

	docID := uuid.New().String()
	return s.ingestAs(ctx, docID, localPath, originalFileName, fileType, true)
}

// Reprocess 取回原始文件并以原 docID 重新摄取，分块与元数据被整体替换。
func (s *ingestService) Reprocess(ctx context.Context, task tasks.ReindexTask) error {
	meta, err := s.store.Get(ctx, task.DocID)
	if err != nil {
		return fmt.Errorf("读取文档元数据失败: %w", err)
	}
	if meta == nil {
		return fmt.Errorf("文档 %s 不在注册表中, 无法重建索引", task.DocID)
	}

	tmpDir, err := os.MkdirTemp("", "doc-theme-reindex-*")
	if err != nil {
		return fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, meta.FileName)
	if err := storage.DownloadOriginal(ctx, config.Conf.MinIO.BucketName, meta.DocID, meta.FileName, localPath); err != nil {
		return fmt.Errorf("取回原始文件失败: %w", err)
	}

	// 复用原 docID, 归档已存在无需重传
	_, err = s.ingestAs(ctx, meta.DocID, localPath, meta.FileName, meta.FileType, false)
	return err
}

// ingestAs 以指定 docID 执行提取、工件落盘、分块与入库。
func (s *ingestService) ingestAs(ctx context.Context, docID, localPath, fileName, fileType string, archive bool) (*model.Document, error) {
	result, err := s.extractor.Extract(localPath, fileType)
	if err != nil {
		return nil, err
	}

	processedPath, err := s.writeArtifact(docID, fileName, result)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:            docID,
		FileName:      fileName,
		FileType:      fileType,
		PageCount:     result.PageCount,
		FullText:      result.FullText,
		PageTexts:     result.PageTexts,
		ProcessedPath: processedPath,
	}

	chunks := chunker.SplitText(result.FullText, config.Conf.Chunking.ChunkSize, config.Conf.Chunking.ChunkOverlap)
	if len(chunks) == 0 {
		// 空文档也要保持可检索，占位一个空分块
		chunks = []string{""}
	}

	if err := s.store.Upsert(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("文档入索引失败: %w", err)
	}

	if archive {
		if err := storage.UploadOriginal(ctx, config.Conf.MinIO.BucketName, docID, fileName, localPath); err != nil {
			log.Warnf("[Ingest] 归档原始文件失败, doc: %s, err: %v", docID, err)
		}
	}

	log.Infof("[Ingest] 文档摄取完成, doc: %s, file: %s, 页数: %d, 分块数: %d", docID, fileName, result.PageCount, len(chunks))
	return doc, nil
}

// writeArtifact 将提取结果持久化为 JSON 工件，返回工件路径。
func (s *ingestService) writeArtifact(docID, fileName string, result *extract.Result) (string, error) {
	processedDir := config.Conf.Storage.ProcessedDir
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return "", fmt.Errorf("创建工件目录失败: %w", err)
	}

	artifact := model.ProcessedArtifact{
		ID:        docID,
		FileName:  fileName,
		FullText:  result.FullText,
		PageTexts: result.PageTexts,
		PageCount: result.PageCount,
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化提取工件失败: %w", err)
	}

	processedPath := filepath.Join(processedDir, fmt.Sprintf("%s_processed.json", docID))
	if err := os.WriteFile(processedPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入提取工件失败: %w", err)
	}
	return processedPath, nil
}
