// Package index 实现了文档索引：可检索的分块存储 + 文档元数据注册表。
// 两者由同一次写入保持步调一致：先写分块，再持久化元数据。
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/internal/repository"
	"doc-theme-go/pkg/embedding"
	"doc-theme-go/pkg/es"
	"doc-theme-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// ErrIndexUnavailable 表示索引底层存储不可用。
// 这是查询管线中唯一会向顶层调用方传播的硬错误来源。
var ErrIndexUnavailable = errors.New("index: store unavailable")

// Store 定义了文档索引的完整契约。
type Store interface {
	// Upsert 替换 docID 既有的全部分块并持久化元数据。
	Upsert(ctx context.Context, doc *model.Document, chunks []string) error
	// Query 返回按相关度排序的分块匹配，可用 docIDs 过滤。
	// 存储故障时软失败（返回空序列），不向调用方传播错误。
	Query(ctx context.Context, text string, docIDs []string, limit int) []model.ChunkMatch
	// ListAll 返回注册表中的全部文档元数据。
	ListAll(ctx context.Context) ([]model.DocumentMeta, error)
	// Get 返回单个文档的元数据；未找到时返回 (nil, nil)。
	Get(ctx context.Context, docID string) (*model.DocumentMeta, error)
	// GetText 返回文档全文，优先读取持久化的提取工件。
	GetText(ctx context.Context, docID string) string
}

type esStore struct {
	esClient        *elasticsearch.Client
	embeddingClient embedding.Client
	docRepo         repository.DocumentRepository
	indexName       string
	modelVersion    string
}

// NewStore 创建一个基于 Elasticsearch + MySQL 注册表的索引实例。
func NewStore(esClient *elasticsearch.Client, embeddingClient embedding.Client, docRepo repository.DocumentRepository, indexName, modelVersion string) Store {
	return &esStore{
		esClient:        esClient,
		embeddingClient: embeddingClient,
		docRepo:         docRepo,
		indexName:       indexName,
		modelVersion:    modelVersion,
	}
}

// Upsert 替换文档分块并持久化元数据。
func (s *esStore) Upsert(ctx context.Context, doc *model.Document, chunks []string) error {
	// 幂等：重新摄取前先清理既有分块，避免重复累积
	if err := es.DeleteChunksByDocID(ctx, s.indexName, doc.ID); err != nil {
		log.Warnf("[Index] 清理 doc_id=%s 旧分块失败: %v", doc.ID, err)
	}

	for i, chunk := range chunks {
		vector, err := s.embeddingClient.CreateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("分块 %d 向量化失败: %w", i, err)
		}

		esChunk := model.EsChunk{
			ChunkKey:     fmt.Sprintf("%s_%d", doc.ID, i),
			DocID:        doc.ID,
			ChunkIndex:   i,
			FileName:     doc.FileName,
			PageCount:    doc.PageCount,
			TextContent:  chunk,
			Vector:       vector,
			ModelVersion: s.modelVersion,
		}
		if err := es.IndexChunk(ctx, s.indexName, esChunk); err != nil {
			return fmt.Errorf("索引分块 %d 到 Elasticsearch 失败: %w", i, err)
		}
	}

	// 分块全部落盘后再写注册表，保证元数据可见时分块一定存在
	if err := s.docRepo.Upsert(doc.Meta()); err != nil {
		return fmt.Errorf("持久化文档元数据失败: %w", err)
	}

	log.Infof("[Index] 文档 %s 入库完成, 共 %d 个分块", doc.ID, len(chunks))
	return nil
}

// Query 执行 kNN + BM25 混合检索。任何存储故障均软失败为空结果。
func (s *esStore) Query(ctx context.Context, text string, docIDs []string, limit int) []model.ChunkMatch {
	if limit <= 0 {
		limit = 5
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, text)
	if err != nil {
		log.Errorf("[Index] 查询向量化失败, 返回空结果: %v", err)
		return []model.ChunkMatch{}
	}

	body, err := buildSearchBody(queryVector, text, docIDs, limit)
	if err != nil {
		log.Errorf("[Index] 构建检索请求失败: %v", err)
		return []model.ChunkMatch{}
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		log.Errorf("[Index] Elasticsearch 检索失败, 返回空结果: %v", err)
		return []model.ChunkMatch{}
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[Index] Elasticsearch 返回错误: %s", res.String())
		return []model.ChunkMatch{}
	}

	matches, err := decodeSearchHits(json.NewDecoder(res.Body))
	if err != nil {
		log.Errorf("[Index] 解析检索响应失败: %v", err)
		return []model.ChunkMatch{}
	}
	return matches
}

// ListAll 返回注册表中的全部文档元数据。
func (s *esStore) ListAll(ctx context.Context) ([]model.DocumentMeta, error) {
	metas, err := s.docRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return metas, nil
}

// Get 返回单个文档的元数据。
func (s *esStore) Get(ctx context.Context, docID string) (*model.DocumentMeta, error) {
	return s.docRepo.FindByID(docID)
}

// GetText 返回文档全文。
// 优先读取持久化的提取工件；工件缺失时从索引分块重新拼装
// （拼装会丢失原始空白与分块顺序保证，仅作兜底）。
func (s *esStore) GetText(ctx context.Context, docID string) string {
	meta, err := s.docRepo.FindByID(docID)
	if err == nil && meta != nil && meta.ProcessedPath != "" {
		if data, err := os.ReadFile(meta.ProcessedPath); err == nil {
			var artifact model.ProcessedArtifact
			if err := json.Unmarshal(data, &artifact); err == nil {
				return artifact.FullText
			}
		}
	}

	return s.reassembleFromChunks(ctx, docID)
}

// reassembleFromChunks 从索引分块拼装文档文本（兜底路径）。
func (s *esStore) reassembleFromChunks(ctx context.Context, docID string) string {
	body := fmt.Sprintf(`{
		"query": {"term": {"doc_id": %q}},
		"sort": [{"chunk_index": "asc"}],
		"size": 10000,
		"_source": ["text_content"]
	}`, docID)

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		log.Errorf("[Index] 拼装文档文本失败, docID: %s, error: %v", docID, err)
		return ""
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[Index] 拼装文档文本时 Elasticsearch 返回错误: %s", res.String())
		return ""
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source struct {
					TextContent string `json:"text_content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return ""
	}

	parts := make([]string, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		parts = append(parts, hit.Source.TextContent)
	}
	return strings.Join(parts, " ")
}
