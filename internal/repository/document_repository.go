// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"sync"

	"doc-theme-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档元数据注册表的持久化操作。
// 注册表保证每个入库过的文档在进程重启后仍可恢复。
type DocumentRepository interface {
	Upsert(meta *model.DocumentMeta) error
	FindByID(docID string) (*model.DocumentMeta, error)
	FindAll() ([]model.DocumentMeta, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
	mu sync.Mutex // 序列化写入，避免并发摄取互相覆盖
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Upsert 写入或覆盖一条文档元数据记录。
func (r *documentRepository) Upsert(meta *model.DocumentMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing model.DocumentMeta
	err := r.db.Where("doc_id = ?", meta.DocID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(meta).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&model.DocumentMeta{}).Where("doc_id = ?", meta.DocID).Updates(map[string]interface{}{
		"file_name":      meta.FileName,
		"file_type":      meta.FileType,
		"page_count":     meta.PageCount,
		"processed_path": meta.ProcessedPath,
	}).Error
}

// FindByID 按文档 ID 查找元数据；未找到时返回 (nil, nil)。
func (r *documentRepository) FindByID(docID string) (*model.DocumentMeta, error) {
	var meta model.DocumentMeta
	err := r.db.Where("doc_id = ?", docID).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// FindAll 返回注册表中的全部文档元数据。
func (r *documentRepository) FindAll() ([]model.DocumentMeta, error) {
	var metas []model.DocumentMeta
	err := r.db.Order("created_at asc").Find(&metas).Error
	return metas, err
}
