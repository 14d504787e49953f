package index

import (
	"encoding/json"
	"fmt"

	"doc-theme-go/internal/model"
)

// buildSearchBody 构建 kNN 向量召回 + BM25 全文匹配的混合检索请求体。
// docIDs 非空时附加 terms 过滤，把召回限制在指定文档集合内。
func buildSearchBody(queryVector []float32, text string, docIDs []string, limit int) (string, error) {
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   queryVector,
		"k":              limit,
		"num_candidates": limit * 10,
	}
	match := map[string]interface{}{
		"match": map[string]interface{}{
			"text_content": text,
		},
	}

	if len(docIDs) > 0 {
		filter := map[string]interface{}{
			"terms": map[string]interface{}{
				"doc_id": docIDs,
			},
		}
		knn["filter"] = filter
		match = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []interface{}{match},
				"filter": []interface{}{filter},
			},
		}
	}

	body := map[string]interface{}{
		"knn":     knn,
		"query":   match,
		"size":    limit,
		"_source": []string{"doc_id", "file_name", "chunk_index", "text_content"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("序列化检索请求体失败: %w", err)
	}
	return string(data), nil
}

// decodeSearchHits 把 Elasticsearch 检索响应解析为分块匹配序列。
func decodeSearchHits(dec *json.Decoder) ([]model.ChunkMatch, error) {
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					DocID       string `json:"doc_id"`
					FileName    string `json:"file_name"`
					ChunkIndex  int    `json:"chunk_index"`
					TextContent string `json:"text_content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := dec.Decode(&esResponse); err != nil {
		return nil, err
	}

	matches := make([]model.ChunkMatch, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		matches = append(matches, model.ChunkMatch{
			DocID:       hit.Source.DocID,
			FileName:    hit.Source.FileName,
			ChunkIndex:  hit.Source.ChunkIndex,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
	}
	return matches, nil
}
