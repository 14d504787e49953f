// Package rag 实现检索增强分析的三个阶段：逐文档问答、主题归纳、综合回答。
package rag

import (
	"encoding/json"
	"regexp"
	"strings"
)

// embeddedJSONPattern 匹配文本中内嵌的最外层 JSON 对象。
// 模型偶尔会在 JSON 前后附加说明文字或 Markdown 围栏，提取时先把
// 换行压平再做贪婪匹配。
var embeddedJSONPattern = regexp.MustCompile(`\{.*\}`)

// decodeModelJSON 按固定顺序尝试把模型输出解析到 target：
//  1. 整段直接按 JSON 解析；
//  2. 压平换行后提取内嵌的 {...} 再解析。
// 两级都失败时返回 false，调用方自行决定原文兜底。
func decodeModelJSON(raw string, target interface{}) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}

	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return true
	}

	flattened := strings.ReplaceAll(trimmed, "\n", " ")
	if m := embeddedJSONPattern.FindString(flattened); m != "" {
		if err := json.Unmarshal([]byte(m), target); err == nil {
			return true
		}
	}
	return false
}

// truncateRunes 按字符数截断文本，超出部分丢弃。
func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
