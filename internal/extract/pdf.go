package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"doc-theme-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

// extractPDF 对 PDF 依次尝试：主提取库 → Tika 回退 → 扫描件 OCR。
func (e *Extractor) extractPDF(filePath string) (*Result, error) {
	result, err := e.extractPDFNative(filePath)
	if err != nil {
		// 主提取库打不开/解析失败，回退到 Tika
		log.Warnf("[Extractor] PDF 主提取失败, 尝试 Tika 回退: %v", err)
		if text, tikaErr := e.tikaClient.ExtractFile(filePath); tikaErr == nil && strings.TrimSpace(text) != "" {
			return &Result{
				FullText:  text,
				PageTexts: []string{text},
				PageCount: 1,
			}, nil
		} else if tikaErr != nil {
			log.Warnf("[Extractor] Tika 回退也失败: %v", tikaErr)
		}
		// 两级提取均失败，按扫描件处理
		return e.extractScannedPDF(filePath)
	}

	// 打开成功但全文仅含空白，视为扫描件
	if strings.TrimSpace(result.FullText) == "" {
		log.Infof("[Extractor] PDF 无可提取文本, 按扫描件走 OCR: %s", filePath)
		return e.extractScannedPDF(filePath)
	}

	return result, nil
}

// extractPDFNative 使用主提取库逐页提取文本。
func (e *Extractor) extractPDFNative(filePath string) (*Result, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 文件失败: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("PDF 文件为空")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("打开 PDF 失败: %w", err)
	}

	pageCount := r.NumPage()
	pageTexts := make([]string, 0, pageCount)
	var fullText strings.Builder

	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		pageText := ""
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil {
				pageText = text
			}
		}
		pageTexts = append(pageTexts, pageText)
		fullText.WriteString(pageText)
		fullText.WriteString("\n\n")
	}

	return &Result{
		FullText:  fullText.String(),
		PageTexts: pageTexts,
		PageCount: pageCount,
	}, nil
}

// extractScannedPDF 将每页按固定 DPI 栅格化后逐页 OCR。
// 每页的临时图片在识别后立即删除，限制大文档处理时的磁盘占用。
func (e *Extractor) extractScannedPDF(filePath string) (*Result, error) {
	tmpDir, err := os.MkdirTemp("", "doc-theme-raster-*")
	if err != nil {
		return nil, fmt.Errorf("%w: 创建临时目录失败: %v", ErrExtractionFailed, err)
	}
	defer os.RemoveAll(tmpDir)

	imagePaths, err := rasterizePDF(filePath, tmpDir, e.rasterDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: 无法对 PDF 执行 OCR: %v", ErrExtractionFailed, err)
	}

	pageTexts := make([]string, 0, len(imagePaths))
	var fullText strings.Builder
	for _, imagePath := range imagePaths {
		pageText := e.ocrAdapter.Recognize(imagePath)
		if err := os.Remove(imagePath); err != nil {
			log.Warnf("[Extractor] 删除临时栅格图失败: %s, err: %v", imagePath, err)
		}
		pageTexts = append(pageTexts, pageText)
		fullText.WriteString(pageText)
		fullText.WriteString("\n\n")
	}

	log.Infof("[Extractor] 扫描件 OCR 完成, file: %s, 页数: %d", filePath, len(pageTexts))
	return &Result{
		FullText:  fullText.String(),
		PageTexts: pageTexts,
		PageCount: len(pageTexts),
	}, nil
}
