// Package chunker 将长文本切分为带重叠的有界分块，供索引与检索使用。
package chunker

// SplitText 将文本切分为有序的分块序列。
//
// 算法：先按段落（换行）切分；超过 chunkSize 的段落再按词边界细分，
// 绝不在词内部断开。段落/词被贪心打包进当前分块，放不下时封闭当前
// 分块并另起新块。切分完成后施加重叠：第 i>0 个分块会被加上前一分块
// 末尾 overlap 个字符的前缀（前一分块不足 overlap 时取其全部），第 0
// 个分块保持不变。
//
// 空输入返回空序列；调用方若需保持 (docID, chunkIndex) 对齐，应自行
// 以单个空分块替代。长度均按 rune 计。
func SplitText(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	var current []rune

	// flush 封闭当前分块
	flush := func() {
		chunks = append(chunks, string(current))
		current = nil
	}

	// appendUnit 将一个单元并入当前分块，sep 为拼接分隔符
	appendUnit := func(unit []rune, sep rune) {
		if len(current)+len(unit)+1 > chunkSize {
			if len(current) > 0 {
				flush()
			}
			current = append(current, unit...)
			return
		}
		if len(current) > 0 {
			current = append(current, sep)
		}
		current = append(current, unit...)
	}

	for _, paragraph := range splitRunes([]rune(text), '\n') {
		if len(paragraph) > chunkSize {
			// 段落过长，按词边界细分后再打包
			var currentPart []rune
			for _, word := range splitRunes(paragraph, ' ') {
				if len(currentPart)+len(word)+1 > chunkSize {
					if len(currentPart) > 0 {
						appendUnit(currentPart, ' ')
					}
					currentPart = append([]rune(nil), word...)
				} else {
					if len(currentPart) > 0 {
						currentPart = append(currentPart, ' ')
					}
					currentPart = append(currentPart, word...)
				}
			}
			if len(currentPart) > 0 {
				appendUnit(currentPart, ' ')
			}
		} else {
			appendUnit(paragraph, '\n')
		}
	}

	if len(current) > 0 {
		flush()
	}

	return applyOverlap(chunks, overlap)
}

// applyOverlap 为除第 0 块外的每个分块加上前一分块的尾部前缀。
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}
	overlapped := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if i == 0 {
			overlapped = append(overlapped, chunk)
			continue
		}
		prev := []rune(chunks[i-1])
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		overlapped = append(overlapped, string(tail)+chunk)
	}
	return overlapped
}

// splitRunes 按单个分隔符切分 rune 序列（等价于 strings.Split，但不反复转换）。
func splitRunes(rs []rune, sep rune) [][]rune {
	var parts [][]rune
	start := 0
	for i, r := range rs {
		if r == sep {
			parts = append(parts, rs[start:i])
			start = i + 1
		}
	}
	parts = append(parts, rs[start:])
	return parts
}
