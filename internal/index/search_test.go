package index

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchBodyWithoutFilter(t *testing.T) {
	body, err := buildSearchBody([]float32{0.1, 0.2}, "climate policy", nil, 5)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))

	knn, ok := parsed["knn"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "vector", knn["field"])
	assert.EqualValues(t, 5, knn["k"])
	assert.EqualValues(t, 50, knn["num_candidates"])
	assert.NotContains(t, knn, "filter")

	query, ok := parsed["query"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, query, "match")
	assert.EqualValues(t, 5, parsed["size"])
}

func TestBuildSearchBodyWithDocIDFilter(t *testing.T) {
	body, err := buildSearchBody([]float32{0.1}, "q", []string{"doc-1", "doc-2"}, 3)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))

	knn := parsed["knn"].(map[string]interface{})
	filter, ok := knn["filter"].(map[string]interface{})
	require.True(t, ok)
	terms := filter["terms"].(map[string]interface{})
	assert.ElementsMatch(t, []interface{}{"doc-1", "doc-2"}, terms["doc_id"])

	// BM25 侧同样套上过滤
	query := parsed["query"].(map[string]interface{})
	boolQuery, ok := query["bool"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, boolQuery, "filter")
	assert.Contains(t, boolQuery, "must")
}

func TestDecodeSearchHits(t *testing.T) {
	raw := `{
		"hits": {
			"hits": [
				{"_score": 1.8, "_source": {"doc_id": "doc-1", "file_name": "a.pdf", "chunk_index": 0, "text_content": "first"}},
				{"_score": 0.9, "_source": {"doc_id": "doc-2", "file_name": "b.pdf", "chunk_index": 3, "text_content": "second"}}
			]
		}
	}`

	matches, err := decodeSearchHits(json.NewDecoder(strings.NewReader(raw)))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc-1", matches[0].DocID)
	assert.Equal(t, 1.8, matches[0].Score)
	assert.Equal(t, 3, matches[1].ChunkIndex)
	assert.Equal(t, "second", matches[1].TextContent)
}

func TestDecodeSearchHitsEmpty(t *testing.T) {
	matches, err := decodeSearchHits(json.NewDecoder(strings.NewReader(`{"hits":{"hits":[]}}`)))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
