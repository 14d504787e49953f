package rag

import (
	"context"
	"errors"
	"fmt"

	"doc-theme-go/internal/index"
	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
)

// qaMaxChars 是送入模型的文档内容上限（约 2500 token），超出部分截断。
const qaMaxChars = 10000

// previewChars 是连接故障降级时返回的文档预览长度。
const previewChars = 500

const qaSystemPrompt = `You are a document analysis assistant. You'll analyze a document to answer a query.
Provide a comprehensive response based only on the document's content.

Include specific citations in your response using the format [Page X, Paragraph Y] or [Section Z].
If the exact location cannot be determined, use [Document] as a general citation.

Provide fact-based responses with no speculation or external knowledge.
If the document doesn't contain information to answer the query, state this clearly.

Format your response in valid JSON with the following structure:
{
    "response": "Your detailed answer here with embedded citations",
    "citations": [
        {"text": "Cited text excerpt", "location": "Page X, Paragraph Y"}
    ]
}`

// DocumentQA 对单个文档执行基于全文的问答。
type DocumentQA struct {
	store     index.Store
	llmClient llm.Client
}

// NewDocumentQA 创建一个新的 DocumentQA 实例。
func NewDocumentQA(store index.Store, llmClient llm.Client) *DocumentQA {
	return &DocumentQA{store: store, llmClient: llmClient}
}

// Answer 针对 query 生成 docID 的逐文档回答。
// 本阶段不向调用方传播错误：模型故障降级为预览/提示性回答，
// 文档缺失时返回 nil 由调用方跳过。
func (q *DocumentQA) Answer(ctx context.Context, query, docID string) *model.DocumentAnswer {
	meta, err := q.store.Get(ctx, docID)
	if err != nil || meta == nil {
		log.Warnf("[DocQA] 文档 %s 不存在或元数据不可读, 跳过: %v", docID, err)
		return nil
	}

	docText := q.store.GetText(ctx, docID)
	truncated := truncateRunes(docText, qaMaxChars)

	userPrompt := fmt.Sprintf(`DOCUMENT INFORMATION:
Title: %s
ID: %s
Pages: %d

DOCUMENT CONTENT:
%s
[Note: Document content has been truncated to fit within token limits. Analysis is based on this excerpt only.]

USER QUERY:
%s

Please analyze this document excerpt and provide a concise response to the query with proper citations.
Keep your response brief and focused. Do not add unnecessary information.`,
		meta.FileName, meta.DocID, meta.PageCount, truncated, query)

	raw, err := q.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: qaSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, &llm.Options{Temperature: 0.1, JSONMode: true})
	if err != nil {
		return q.degradedAnswer(meta, docText, err)
	}

	var parsed struct {
		Response  string           `json:"response"`
		Citations []model.Citation `json:"citations"`
	}
	if !decodeModelJSON(raw, &parsed) {
		// 无法恢复出结构化回答时原文兜底，引用置空
		log.Warnf("[DocQA] 解析模型 JSON 输出失败, doc: %s", docID)
		parsed.Response = raw
		parsed.Citations = nil
	}

	return &model.DocumentAnswer{
		DocID:     meta.DocID,
		FileName:  meta.FileName,
		Response:  parsed.Response,
		Citations: parsed.Citations,
	}
}

// degradedAnswer 把模型调用失败转成降级回答。
func (q *DocumentQA) degradedAnswer(meta *model.DocumentMeta, docText string, cause error) *model.DocumentAnswer {
	log.Errorf("[DocQA] 模型调用失败, doc: %s, error: %v", meta.DocID, cause)

	if llm.IsConnectivityError(cause) {
		preview := docText
		if len([]rune(docText)) > previewChars {
			preview = truncateRunes(docText, previewChars) + "..."
		}
		return &model.DocumentAnswer{
			DocID:    meta.DocID,
			FileName: meta.FileName,
			Response: fmt.Sprintf("This document contains information that might be relevant to your query. Here's a preview: %s", preview),
			Citations: []model.Citation{
				{Text: preview, Location: "Document preview"},
			},
			Error: "Connection issue - displaying document preview only",
		}
	}

	if errors.Is(cause, llm.ErrRateLimited) {
		return &model.DocumentAnswer{
			DocID:    meta.DocID,
			FileName: meta.FileName,
			Response: "The document is too large for processing with the current API limitations. Try a smaller document or upgrade the API tier.",
			Error:    cause.Error(),
		}
	}

	return &model.DocumentAnswer{
		DocID:    meta.DocID,
		FileName: meta.FileName,
		Response: fmt.Sprintf("Error querying document: %v", cause),
		Error:    cause.Error(),
	}
}
