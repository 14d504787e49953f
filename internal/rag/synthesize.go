package rag

import (
	"context"
	"fmt"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
)

// 综合阶段的输入预算：最多纳入 5 篇文档回答，每篇截断到 300 字符。
const (
	synthMaxDocs      = 5
	synthDigestChars  = 300
	synthPreviewChars = 200
)

const synthSystemPrompt = `You are a research synthesis assistant. Your task is to create a comprehensive synthesized response
based on identified themes across multiple documents.

For each theme, provide:
1. A clear explanation of the theme
2. Evidence supporting the theme with citations to specific documents
3. How the theme relates to the original query

Format your response in valid JSON with the following structure:
{
    "synthesized_response": "Your comprehensive answer covering all identified themes",
    "themes_analysis": [
        {
            "theme_name": "Theme Name",
            "explanation": "Detailed explanation of this theme",
            "supporting_evidence": "Evidence with document citations [DOC001, DOC002]",
            "relevance_to_query": "How this theme relates to the original query"
        }
    ]
}

Ensure your response is well-structured, factual, and based only on the provided document information.`

// Synthesizer 把主题与逐文档回答综合成最终回答。
type Synthesizer struct {
	llmClient llm.Client
}

// NewSynthesizer 创建一个新的 Synthesizer 实例。
func NewSynthesizer(llmClient llm.Client) *Synthesizer {
	return &Synthesizer{llmClient: llmClient}
}

// Synthesize 生成最终的综合回答。本阶段不向调用方传播错误：
// 连接故障降级为逐文档预览清单，其余故障返回带错误说明的占位回答。
func (s *Synthesizer) Synthesize(ctx context.Context, query string, themes []model.Theme, answers []model.DocumentAnswer) *model.SynthesizedResponse {
	userPrompt := fmt.Sprintf(`ORIGINAL QUERY:
%s

IDENTIFIED THEMES:
%s

DOCUMENT RESPONSES:
%s

Please synthesize a comprehensive response that addresses the original query by analyzing the identified themes
across all documents. Include specific document citations where appropriate.`,
		query, buildThemesDigest(themes), buildAnswersDigest(answers))

	raw, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: synthSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, &llm.Options{Temperature: 0.2, JSONMode: true})
	if err != nil {
		return s.degradedSynthesis(answers, err)
	}

	var parsed model.SynthesizedResponse
	if !decodeModelJSON(raw, &parsed) {
		log.Warnf("[Synthesize] 解析综合回答 JSON 输出失败")
		fallbackText := raw
		if strings.TrimSpace(raw) == "" {
			fallbackText = "Error generating response"
		}
		return &model.SynthesizedResponse{
			SynthesizedResponse: fallbackText,
			ThemesAnalysis:      []model.ThemeAnalysis{},
		}
	}
	if parsed.ThemesAnalysis == nil {
		parsed.ThemesAnalysis = []model.ThemeAnalysis{}
	}
	return &parsed
}

// degradedSynthesis 把模型调用失败转成降级综合回答。
func (s *Synthesizer) degradedSynthesis(answers []model.DocumentAnswer, cause error) *model.SynthesizedResponse {
	log.Errorf("[Synthesize] 综合回答模型调用失败: %v", cause)

	if llm.IsConnectivityError(cause) {
		var summary strings.Builder
		summary.WriteString("Unable to synthesize themes due to connection issues. Here's a summary of the documents:")
		summary.WriteString("\n\nDocument Summaries:\n\n")
		for idx, answer := range answers {
			name := answer.FileName
			if name == "" {
				name = fmt.Sprintf("Document %d", idx+1)
			}
			summary.WriteString(fmt.Sprintf("• %s: %s...\n\n", name, truncateRunes(answer.Response, synthPreviewChars)))
		}
		return &model.SynthesizedResponse{
			SynthesizedResponse: summary.String(),
			ThemesAnalysis:      []model.ThemeAnalysis{},
			Error:               cause.Error(),
		}
	}

	return &model.SynthesizedResponse{
		SynthesizedResponse: fmt.Sprintf("Error synthesizing themes: %v", cause),
		ThemesAnalysis:      []model.ThemeAnalysis{},
		Error:               cause.Error(),
	}
}

// buildThemesDigest 把主题序列压缩成提示词中的摘要段。
func buildThemesDigest(themes []model.Theme) string {
	var digest strings.Builder
	for _, theme := range themes {
		digest.WriteString(fmt.Sprintf("\nTHEME: %s\n", theme.Name))
		digest.WriteString(fmt.Sprintf("Description: %s\n", theme.Description))
		digest.WriteString(fmt.Sprintf("Supporting Documents: %s\n", strings.Join(theme.SupportingDocs, ", ")))
	}
	return digest.String()
}

// buildAnswersDigest 把逐文档回答压缩成摘要段，最多纳入前 5 篇，
// 超出部分以一条省略说明替代。
func buildAnswersDigest(answers []model.DocumentAnswer) string {
	var digest strings.Builder
	for idx, answer := range answers {
		if idx >= synthMaxDocs {
			digest.WriteString(fmt.Sprintf("\n[Additional %d documents omitted to stay within token limits]\n", len(answers)-synthMaxDocs))
			break
		}
		digest.WriteString(fmt.Sprintf("\nDOCUMENT %d: %s\n", idx+1, answer.FileName))
		response := answer.Response
		if len([]rune(response)) > synthDigestChars {
			response = truncateRunes(response, synthDigestChars) + "... [truncated]"
		}
		digest.WriteString(fmt.Sprintf("Response: %s\n", response))
		digest.WriteString(fmt.Sprintf("Document ID: %s\n", answer.DocID))
	}
	return digest.String()
}
