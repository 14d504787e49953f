package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM 是可编程的 llm.Client 测试替身。
type fakeLLM struct {
	reply    string
	err      error
	lastMsgs []llm.Message
	lastOpts *llm.Options
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	f.lastMsgs = messages
	f.lastOpts = opts
	return f.reply, f.err
}

// fakeStore 是内存版的 index.Store 测试替身。
type fakeStore struct {
	metas      map[string]*model.DocumentMeta
	texts      map[string]string
	listErr    error
	upserted   []*model.Document
	lastChunks []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		metas: make(map[string]*model.DocumentMeta),
		texts: make(map[string]string),
	}
}

func (f *fakeStore) add(docID, fileName, text string, pages int) {
	f.metas[docID] = &model.DocumentMeta{DocID: docID, FileName: fileName, PageCount: pages}
	f.texts[docID] = text
}

func (f *fakeStore) Upsert(_ context.Context, doc *model.Document, chunks []string) error {
	f.upserted = append(f.upserted, doc)
	f.lastChunks = chunks
	f.add(doc.ID, doc.FileName, doc.FullText, doc.PageCount)
	return nil
}

func (f *fakeStore) Query(context.Context, string, []string, int) []model.ChunkMatch {
	return []model.ChunkMatch{}
}

func (f *fakeStore) ListAll(context.Context) ([]model.DocumentMeta, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	metas := make([]model.DocumentMeta, 0, len(f.metas))
	for _, m := range f.metas {
		metas = append(metas, *m)
	}
	return metas, nil
}

func (f *fakeStore) Get(_ context.Context, docID string) (*model.DocumentMeta, error) {
	return f.metas[docID], nil
}

func (f *fakeStore) GetText(_ context.Context, docID string) string {
	return f.texts[docID]
}

func TestAnswerParsesModelJSON(t *testing.T) {
	store := newFakeStore()
	store.add("doc-1", "report.pdf", "The quarterly revenue grew by 14 percent.", 3)
	client := &fakeLLM{reply: `{"response":"Revenue grew 14% [Page 1, Paragraph 2]","citations":[{"text":"revenue grew by 14 percent","location":"Page 1, Paragraph 2"}]}`}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "How did revenue change?", "doc-1")

	require.NotNil(t, answer)
	assert.Equal(t, "doc-1", answer.DocID)
	assert.Equal(t, "report.pdf", answer.FileName)
	assert.Equal(t, "Revenue grew 14% [Page 1, Paragraph 2]", answer.Response)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Page 1, Paragraph 2", answer.Citations[0].Location)
	assert.Empty(t, answer.Error)

	// 低温 + JSON 模式
	require.NotNil(t, client.lastOpts)
	assert.InDelta(t, 0.1, client.lastOpts.Temperature, 1e-9)
	assert.True(t, client.lastOpts.JSONMode)
}

func TestAnswerTruncatesDocumentContent(t *testing.T) {
	store := newFakeStore()
	store.add("doc-1", "big.txt", strings.Repeat("x", qaMaxChars+5000), 1)
	client := &fakeLLM{reply: `{"response":"ok","citations":[]}`}

	NewDocumentQA(store, client).Answer(context.Background(), "q", "doc-1")

	require.Len(t, client.lastMsgs, 2)
	userPrompt := client.lastMsgs[1].Content
	assert.NotContains(t, userPrompt, strings.Repeat("x", qaMaxChars+1))
	assert.Contains(t, userPrompt, strings.Repeat("x", qaMaxChars))
	assert.Contains(t, userPrompt, "truncated to fit within token limits")
}

func TestAnswerRawFallbackOnUnparsableOutput(t *testing.T) {
	store := newFakeStore()
	store.add("doc-1", "a.txt", "content", 1)
	client := &fakeLLM{reply: "the model ignored the JSON instruction entirely"}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "q", "doc-1")

	require.NotNil(t, answer)
	assert.Equal(t, "the model ignored the JSON instruction entirely", answer.Response)
	assert.Empty(t, answer.Citations)
}

func TestAnswerConnectivityFallbackShowsPreview(t *testing.T) {
	store := newFakeStore()
	longText := strings.Repeat("a", 800)
	store.add("doc-1", "a.txt", longText, 1)
	client := &fakeLLM{err: fmt.Errorf("%w: dial tcp refused", llm.ErrConnectivity)}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "q", "doc-1")

	require.NotNil(t, answer)
	assert.Equal(t, "Connection issue - displaying document preview only", answer.Error)
	assert.Contains(t, answer.Response, "Here's a preview: ")
	assert.Contains(t, answer.Response, strings.Repeat("a", previewChars)+"...")
	assert.NotContains(t, answer.Response, strings.Repeat("a", previewChars+1))
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Document preview", answer.Citations[0].Location)
}

func TestAnswerShortDocumentPreviewNotTruncated(t *testing.T) {
	store := newFakeStore()
	store.add("doc-1", "a.txt", "short text", 1)
	client := &fakeLLM{err: fmt.Errorf("%w: timeout", llm.ErrConnectivity)}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "q", "doc-1")

	require.NotNil(t, answer)
	assert.Contains(t, answer.Response, "Here's a preview: short text")
	assert.NotContains(t, answer.Response, "short text...")
}

func TestAnswerRateLimitedFallback(t *testing.T) {
	store := newFakeStore()
	store.add("doc-1", "a.txt", "content", 1)
	client := &fakeLLM{err: fmt.Errorf("%w: 429", llm.ErrRateLimited)}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "q", "doc-1")

	require.NotNil(t, answer)
	assert.Contains(t, answer.Response, "too large for processing")
	assert.NotEmpty(t, answer.Error)
	assert.Empty(t, answer.Citations)
}

func TestAnswerMissingDocumentSkipped(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{reply: `{"response":"ok","citations":[]}`}

	answer := NewDocumentQA(store, client).Answer(context.Background(), "q", "ghost")
	assert.Nil(t, answer)
}
