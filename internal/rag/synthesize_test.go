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

func TestSynthesizeParsesModelJSON(t *testing.T) {
	client := &fakeLLM{reply: `{
		"synthesized_response": "Across documents the dominant theme is climate policy [doc-1, doc-2].",
		"themes_analysis": [
			{"theme_name": "Climate Policy", "explanation": "e", "supporting_evidence": "s [doc-1]", "relevance_to_query": "r"}
		]
	}`}

	result := NewSynthesizer(client).Synthesize(context.Background(), "query", []model.Theme{{Name: "Climate Policy"}}, sampleAnswers())

	require.NotNil(t, result)
	assert.Contains(t, result.SynthesizedResponse, "dominant theme")
	require.Len(t, result.ThemesAnalysis, 1)
	assert.Equal(t, "Climate Policy", result.ThemesAnalysis[0].ThemeName)
	assert.Empty(t, result.Error)

	require.NotNil(t, client.lastOpts)
	assert.InDelta(t, 0.2, client.lastOpts.Temperature, 1e-9)
	assert.True(t, client.lastOpts.JSONMode)
}

func TestSynthesizeRawFallbackOnUnparsableOutput(t *testing.T) {
	client := &fakeLLM{reply: "plain prose instead of json"}

	result := NewSynthesizer(client).Synthesize(context.Background(), "q", nil, sampleAnswers())

	assert.Equal(t, "plain prose instead of json", result.SynthesizedResponse)
	assert.Empty(t, result.ThemesAnalysis)
	assert.NotNil(t, result.ThemesAnalysis)
}

func TestSynthesizeConnectivityFallbackListsDocuments(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("%w: refused", llm.ErrConnectivity)}
	answers := []model.DocumentAnswer{
		{DocID: "doc-1", FileName: "a.pdf", Response: strings.Repeat("p", 300)},
		{DocID: "doc-2", FileName: "b.pdf", Response: "short answer"},
	}

	result := NewSynthesizer(client).Synthesize(context.Background(), "q", nil, answers)

	assert.Contains(t, result.SynthesizedResponse, "Unable to synthesize themes due to connection issues")
	assert.Contains(t, result.SynthesizedResponse, "• a.pdf: "+strings.Repeat("p", synthPreviewChars)+"...")
	assert.Contains(t, result.SynthesizedResponse, "• b.pdf: short answer...")
	assert.Empty(t, result.ThemesAnalysis)
	assert.NotEmpty(t, result.Error)
}

func TestSynthesizeOtherErrorFallback(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("boom")}

	result := NewSynthesizer(client).Synthesize(context.Background(), "q", nil, sampleAnswers())

	assert.Contains(t, result.SynthesizedResponse, "Error synthesizing themes: boom")
	assert.Equal(t, "boom", result.Error)
}

func TestAnswersDigestCapsDocumentCount(t *testing.T) {
	answers := make([]model.DocumentAnswer, 8)
	for i := range answers {
		answers[i] = model.DocumentAnswer{
			DocID:    fmt.Sprintf("doc-%d", i+1),
			FileName: fmt.Sprintf("f%d.txt", i+1),
			Response: strings.Repeat("z", synthDigestChars+50),
		}
	}

	digest := buildAnswersDigest(answers)

	assert.Contains(t, digest, "DOCUMENT 5: f5.txt")
	assert.NotContains(t, digest, "DOCUMENT 6")
	assert.Contains(t, digest, "[Additional 3 documents omitted to stay within token limits]")
	assert.Contains(t, digest, strings.Repeat("z", synthDigestChars)+"... [truncated]")
	assert.NotContains(t, digest, strings.Repeat("z", synthDigestChars+1))
}

func TestThemesDigest(t *testing.T) {
	digest := buildThemesDigest([]model.Theme{
		{Name: "T1", Description: "D1", SupportingDocs: []string{"doc-1", "doc-2"}},
	})
	assert.Contains(t, digest, "THEME: T1")
	assert.Contains(t, digest, "Description: D1")
	assert.Contains(t, digest, "Supporting Documents: doc-1, doc-2")
}
