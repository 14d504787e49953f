package rag

import (
	"context"
	"fmt"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"

	"github.com/google/uuid"
)

// digestChars 是主题归纳阶段每条文档回答的摘要长度上限。
const digestChars = 500

const themeSystemPrompt = `You are a theme identification expert. Your task is to analyze multiple document responses
and identify common themes across them.

For each identified theme:
1. Provide a clear, concise name
2. Write a detailed description
3. List all document IDs that support this theme

Format your response in valid JSON with the following structure:
{
    "themes": [
        {
            "id": "unique_id",
            "name": "Theme Name",
            "description": "Detailed description of this theme",
            "supporting_docs": ["DOC001", "DOC002"]
        }
    ]
}

Ensure themes are truly present across multiple documents where possible.
If no common themes exist, identify the most important individual themes.
Aim to identify 2-5 significant themes.`

// ThemeIdentifier 在逐文档回答之上归纳跨文档主题。
type ThemeIdentifier struct {
	llmClient llm.Client
}

// NewThemeIdentifier 创建一个新的 ThemeIdentifier 实例。
func NewThemeIdentifier(llmClient llm.Client) *ThemeIdentifier {
	return &ThemeIdentifier{llmClient: llmClient}
}

// Identify 从逐文档回答中归纳共同主题。
// 模型调用失败时返回空序列；调用成功但未归纳出主题时返回单个
// 覆盖全部文档的兜底主题，二者对下游是不同的信号。
func (t *ThemeIdentifier) Identify(ctx context.Context, answers []model.DocumentAnswer) []model.Theme {
	raw, err := t.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: themeSystemPrompt},
		{Role: "user", Content: buildThemeUserPrompt(answers)},
	}, &llm.Options{Temperature: 0.3, JSONMode: true})
	if err != nil {
		log.Errorf("[Themes] 主题归纳模型调用失败: %v", err)
		return []model.Theme{}
	}

	var parsed struct {
		Themes []model.Theme `json:"themes"`
	}
	if !decodeModelJSON(raw, &parsed) {
		log.Warnf("[Themes] 解析主题 JSON 输出失败: %s", truncateRunes(raw, 200))
	}

	if len(parsed.Themes) == 0 {
		log.Warnf("[Themes] 模型未归纳出主题, 使用兜底主题")
		return []model.Theme{fallbackTheme(answers)}
	}

	for i := range parsed.Themes {
		if parsed.Themes[i].ID == "" {
			parsed.Themes[i].ID = uuid.New().String()
		}
	}
	log.Infof("[Themes] 归纳出 %d 个主题", len(parsed.Themes))
	return parsed.Themes
}

// buildThemeUserPrompt 把逐文档回答压缩成带编号与分隔线的摘要文本。
func buildThemeUserPrompt(answers []model.DocumentAnswer) string {
	var digest strings.Builder
	for idx, answer := range answers {
		digest.WriteString(fmt.Sprintf("\nDOCUMENT %d: %s\n", idx+1, answer.FileName))
		response := answer.Response
		if len([]rune(response)) > digestChars {
			response = truncateRunes(response, digestChars) + "... [truncated]"
		}
		digest.WriteString(fmt.Sprintf("Response: %s\n", response))
		digest.WriteString(fmt.Sprintf("Document ID: %s\n", answer.DocID))
		digest.WriteString("--------------------------------------------------\n")
	}

	return fmt.Sprintf(`Please analyze the following document responses and identify common themes across them:

%s

Identify meaningful themes that connect these documents. For each theme, provide a name,
description, and list of document IDs that support it.`, digest.String())
}

// fallbackTheme 构建覆盖全部有效文档的单一兜底主题。
func fallbackTheme(answers []model.DocumentAnswer) model.Theme {
	supportingDocs := make([]string, 0, len(answers))
	for _, answer := range answers {
		if answer.DocID != "" {
			supportingDocs = append(supportingDocs, answer.DocID)
		}
	}
	return model.Theme{
		ID:             uuid.New().String(),
		Name:           "Document Analysis",
		Description:    "Analysis of document content related to the query.",
		SupportingDocs: supportingDocs,
	}
}
