// Package extract 负责将原始文件转换为纯文本与逐页文本。
// 按文件类型选择提取策略，原生提取拿不到文本时回退到 OCR。
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/ocr"
	"doc-theme-go/pkg/tika"
)

var (
	// ErrUnsupportedFormat 表示文件类型不在支持范围内。
	ErrUnsupportedFormat = errors.New("extract: unsupported file format")
	// ErrExtractionFailed 表示所有提取策略均已用尽仍然失败。
	ErrExtractionFailed = errors.New("extract: extraction failed")
)

// Result 是一次文本提取的输出。PageTexts 与页一一对应。
type Result struct {
	FullText  string
	PageTexts []string
	PageCount int
}

// Extractor 按文件类型分派提取策略。
type Extractor struct {
	ocrAdapter *ocr.Adapter
	tikaClient *tika.Client
	rasterDPI  int
}

// NewExtractor 创建一个新的 Extractor 实例。
func NewExtractor(ocrAdapter *ocr.Adapter, tikaClient *tika.Client, rasterDPI int) *Extractor {
	if rasterDPI <= 0 {
		rasterDPI = 300
	}
	return &Extractor{
		ocrAdapter: ocrAdapter,
		tikaClient: tikaClient,
		rasterDPI:  rasterDPI,
	}
}

// 各策略支持的文件类型（小写扩展名，不含点）。
var (
	textTypes  = map[string]bool{"txt": true, "md": true, "csv": true}
	imageTypes = map[string]bool{"png": true, "jpg": true, "jpeg": true, "tiff": true, "bmp": true, "gif": true}
)

// Supported 判断一个文件类型是否可被提取。
func Supported(fileType string) bool {
	fileType = strings.ToLower(fileType)
	return fileType == "pdf" || textTypes[fileType] || imageTypes[fileType]
}

// Extract 从文件中提取文本。
// 纯文本类格式按单页原样读取；PDF 走主/次提取库并在必要时转 OCR；
// 图片直接交给 OCR，产生恰好一页。
func (e *Extractor) Extract(filePath, fileType string) (*Result, error) {
	fileType = strings.ToLower(fileType)

	switch {
	case textTypes[fileType]:
		return e.extractPlainText(filePath)
	case fileType == "pdf":
		return e.extractPDF(filePath)
	case imageTypes[fileType]:
		return e.extractImage(filePath)
	default:
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, fileType)
	}
}

// extractPlainText 将纯文本文件按单页原样读入。
func (e *Extractor) extractPlainText(filePath string) (*Result, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取文本文件失败: %v", ErrExtractionFailed, err)
	}
	text := string(content)
	return &Result{
		FullText:  text,
		PageTexts: []string{text},
		PageCount: 1,
	}, nil
}

// extractImage 将图片路由到 OCR 适配器，产生恰好一页。
func (e *Extractor) extractImage(filePath string) (*Result, error) {
	text := e.ocrAdapter.Recognize(filePath)
	log.Infof("[Extractor] 图片 OCR 完成, file: %s, 文本长度: %d", filePath, len(text))
	return &Result{
		FullText:  text,
		PageTexts: []string{text},
		PageCount: 1,
	}, nil
}
