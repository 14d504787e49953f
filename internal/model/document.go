// Package model 定义了应用的核心数据结构。
package model

import "time"

// DocumentMeta 对应于数据库中的 document_meta 表。
// 它是文档元数据注册表的持久化形式，保证重启后所有已入库文档可恢复。
type DocumentMeta struct {
	DocID         string    `gorm:"type:varchar(64);primaryKey;column:doc_id" json:"id"`
	FileName      string    `gorm:"type:varchar(255);not null;column:file_name" json:"filename"`
	FileType      string    `gorm:"type:varchar(16);column:file_type" json:"file_type"`
	PageCount     int       `gorm:"not null;default:0;column:page_count" json:"page_count"`
	ProcessedPath string    `gorm:"type:varchar(255);column:processed_path" json:"processed_path"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentMeta) TableName() string {
	return "document_meta"
}

// Document 表示一次摄取的完整结果，包含提取出的文本内容。
// 元数据部分入库后不可变，删除仅通过显式移除。
type Document struct {
	ID            string   `json:"id"`
	FileName      string   `json:"filename"`
	FileType      string   `json:"file_type"`
	PageCount     int      `json:"page_count"`
	FullText      string   `json:"full_text"`
	PageTexts     []string `json:"page_texts"`
	ProcessedPath string   `json:"processed_path"`
}

// ProcessedArtifact 是持久化到磁盘的提取结果 JSON 工件。
// GetText 优先读取该工件而不是从索引分块重新拼装。
type ProcessedArtifact struct {
	ID        string   `json:"id"`
	FileName  string   `json:"filename"`
	FullText  string   `json:"full_text"`
	PageTexts []string `json:"page_texts"`
	PageCount int      `json:"page_count"`
}

// Meta 返回文档的注册表条目。
func (d *Document) Meta() *DocumentMeta {
	return &DocumentMeta{
		DocID:         d.ID,
		FileName:      d.FileName,
		FileType:      d.FileType,
		PageCount:     d.PageCount,
		ProcessedPath: d.ProcessedPath,
	}
}
