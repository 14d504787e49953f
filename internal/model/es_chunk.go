package model

// EsChunk 定义了存储在 Elasticsearch 中的文档分块结构。
type EsChunk struct {
	ChunkKey     string    `json:"chunk_key"` // 唯一标识，docID + chunkIndex
	DocID        string    `json:"doc_id"`
	ChunkIndex   int       `json:"chunk_index"`
	FileName     string    `json:"file_name"`
	PageCount    int       `json:"page_count"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"` // 文本内容的向量表示
	ModelVersion string    `json:"model_version"`
}

// ChunkMatch 定义了返回给调用方的分块检索结果。
type ChunkMatch struct {
	DocID       string  `json:"docId"`
	FileName    string  `json:"fileName"`
	ChunkIndex  int     `json:"chunkIndex"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}
