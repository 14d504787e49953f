package extract

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// rasterizePDF 将 PDF 的每一页渲染为 PNG 图片（300 DPI 级别的放大），
// 返回按页序排列的图片路径。优先使用 Poppler 的 pdftoppm，其次回退
// 到 ImageMagick。
func rasterizePDF(pdfPath, tmpDir string, dpi int) ([]string, error) {
	imagePrefix := filepath.Join(tmpDir, "page")
	converted := false

	if _, err := exec.LookPath("pdftoppm"); err == nil {
		cmd := exec.Command("pdftoppm", "-png", "-r", strconv.Itoa(dpi), pdfPath, imagePrefix)
		if err := cmd.Run(); err == nil {
			converted = true
		}
	}

	if !converted {
		if magickPath, err := exec.LookPath("magick"); err == nil {
			cmd := exec.Command(magickPath, "convert", "-density", strconv.Itoa(dpi), pdfPath, imagePrefix+"-%03d.png")
			if err := cmd.Run(); err == nil {
				converted = true
			}
		}
	}

	if !converted {
		return nil, fmt.Errorf("无法将 PDF 栅格化为图片: 需要 Poppler (pdftoppm) 或 ImageMagick (magick)")
	}

	imageFiles, err := filepath.Glob(imagePrefix + "*")
	if err != nil || len(imageFiles) == 0 {
		return nil, fmt.Errorf("PDF 未生成任何页图片")
	}
	// pdftoppm 的页号补零命名保证字典序即页序
	sort.Strings(imageFiles)
	return imageFiles, nil
}
