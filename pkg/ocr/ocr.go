// Package ocr 封装了对外部识别引擎（tesseract）的调用。
// 引擎缺失时返回确定性的占位文本，摄取流程绝不因 OCR 工具缺失而失败。
package ocr

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"doc-theme-go/internal/config"
	"doc-theme-go/pkg/log"
)

// lookPath 可在测试中替换，用于模拟引擎缺失的环境。
var lookPath = exec.LookPath

// Adapter 是 OCR 识别引擎的适配器。
type Adapter struct {
	cmd string

	once      sync.Once
	available bool
}

// NewAdapter 创建一个新的 OCR 适配器。
func NewAdapter(cfg config.OCRConfig) *Adapter {
	cmd := cfg.TesseractCmd
	if cmd == "" {
		cmd = "tesseract"
	}
	return &Adapter{cmd: cmd}
}

// Available 检查 tesseract 二进制是否可调用（结果缓存）。
func (a *Adapter) Available() bool {
	a.once.Do(func() {
		if _, err := lookPath(a.cmd); err == nil {
			a.available = true
		}
	})
	return a.available
}

// Recognize 对一张图片执行文字识别并返回文本。
// 引擎不可用时返回占位文本；识别失败时返回带原因的描述文本。
func (a *Adapter) Recognize(imagePath string) string {
	if !a.Available() {
		log.Warnf("[OCR] tesseract 未安装, 对 %s 返回占位文本", imagePath)
		return fmt.Sprintf("[OCR Text Extraction from %s]", filepath.Base(imagePath))
	}

	text, err := a.runTesseract(imagePath)
	if err != nil {
		log.Errorf("[OCR] tesseract 识别失败, image: %s, error: %v", imagePath, err)
		return fmt.Sprintf("OCR processing failed: %v", err)
	}
	return text
}

// runTesseract 预处理图片（灰度化）后调用 tesseract，临时产物在返回前清理。
func (a *Adapter) runTesseract(imagePath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "doc-theme-ocr-*")
	if err != nil {
		return "", fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// 灰度预处理；tiff/bmp 等 stdlib 无法解码的格式直接交给 tesseract
	inputPath := imagePath
	if grayPath, err := grayscale(imagePath, filepath.Join(tmpDir, "gray.png")); err == nil {
		inputPath = grayPath
	} else {
		log.Warnf("[OCR] 灰度预处理失败, 使用原图: %v", err)
	}

	outBase := filepath.Join(tmpDir, "out")
	cmd := exec.Command(a.cmd, inputPath, outBase)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("tesseract 执行失败: %v, output: %s", err, string(out))
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("读取识别结果失败: %w", err)
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// grayscale 将图片解码为灰度图并另存为 PNG。
func grayscale(srcPath, dstPath string) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if err := png.Encode(dst, gray); err != nil {
		return "", err
	}
	return dstPath, nil
}
