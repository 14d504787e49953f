// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/extract"
	"doc-theme-go/internal/index"
	"doc-theme-go/internal/model"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/kafka"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/tasks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	ingestService service.IngestService
	store         index.Store
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(ingestService service.IngestService, store index.Store) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		store:         store,
	}
}

// uploadError 描述批量上传中单个文件的失败原因。
type uploadError struct {
	FileName string `json:"filename"`
	Error    string `json:"error"`
}

// Upload 处理批量上传请求。逐文件独立摄取，单个文件失败
// 不影响其余文件，整体结果里分别列出成功与失败。
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法解析 multipart 表单"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中不包含任何文件"})
		return
	}

	uploadDir := config.Conf.Storage.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法创建上传目录"})
		return
	}

	documents := make([]*model.Document, 0, len(files))
	uploadErrors := make([]uploadError, 0)

	for _, fileHeader := range files {
		fileName := filepath.Base(fileHeader.Filename)

		localPath := filepath.Join(uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), fileName))
		if err := c.SaveUploadedFile(fileHeader, localPath); err != nil {
			uploadErrors = append(uploadErrors, uploadError{FileName: fileName, Error: "保存上传文件失败"})
			continue
		}

		doc, err := h.ingestService.Ingest(c.Request.Context(), localPath, fileName)
		_ = os.Remove(localPath)
		if err != nil {
			log.Errorf("[Upload] 摄取文件失败, file: %s, err: %v", fileName, err)
			uploadErrors = append(uploadErrors, uploadError{FileName: fileName, Error: ingestErrorMessage(err)})
			continue
		}
		documents = append(documents, doc)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   len(uploadErrors) == 0,
		"documents": documentSummaries(documents),
		"errors":    uploadErrors,
	})
}

// ingestErrorMessage 把摄取错误映射为对客户端友好的提示。
func ingestErrorMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "不支持的文件格式"
	case errors.Is(err, extract.ErrExtractionFailed):
		return "文本提取失败"
	default:
		return err.Error()
	}
}

// documentSummaries 把摄取结果裁剪为不含全文的响应摘要。
func documentSummaries(docs []*model.Document) []gin.H {
	summaries := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, gin.H{
			"id":         doc.ID,
			"filename":   doc.FileName,
			"file_type":  doc.FileType,
			"page_count": doc.PageCount,
		})
	}
	return summaries
}

// List 返回注册表中全部文档的元数据。
func (h *DocumentHandler) List(c *gin.Context) {
	metas, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		log.Error("List: 读取文档清单失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": metas,
		"count":     len(metas),
	})
}

// Reindex 为指定文档投递一个异步重建索引任务。
func (h *DocumentHandler) Reindex(c *gin.Context) {
	docID := c.Param("docId")
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少文档 ID"})
		return
	}

	meta, err := h.store.Get(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文档元数据失败"})
		return
	}
	if meta == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
		return
	}

	task := tasks.ReindexTask{DocID: meta.DocID, FileName: meta.FileName}
	if err := kafka.ProduceReindexTask(task); err != nil {
		log.Errorf("Reindex: 投递任务失败, doc: %s, err: %v", docID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "投递重建索引任务失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "重建索引任务已提交",
		"doc_id":  docID,
	})
}
