package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/extract"
	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/ocr"
	"doc-theme-go/pkg/tika"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngestService(t *testing.T, store *memStore) IngestService {
	t.Helper()
	config.Conf.Storage.ProcessedDir = t.TempDir()
	config.Conf.Chunking.ChunkSize = 1000
	config.Conf.Chunking.ChunkOverlap = 200

	adapter := ocr.NewAdapter(config.OCRConfig{TesseractCmd: "no-such-ocr-engine-for-tests"})
	extractor := extract.NewExtractor(adapter, tika.NewClient(config.TikaConfig{}), 300)
	return NewIngestService(extractor, store)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestPlainText(t *testing.T) {
	store := newMemStore()
	svc := newTestIngestService(t, store)

	path := writeTempFile(t, "notes.txt", "chunk me please")
	doc, err := svc.Ingest(context.Background(), path, "notes.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.FileName)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, "chunk me please", doc.FullText)

	require.Len(t, store.upserted, 1)
	assert.Equal(t, []string{"chunk me please"}, store.lastChunks)
}

func TestIngestWritesProcessedArtifact(t *testing.T) {
	store := newMemStore()
	svc := newTestIngestService(t, store)

	path := writeTempFile(t, "notes.txt", "artifact content")
	doc, err := svc.Ingest(context.Background(), path, "notes.txt")
	require.NoError(t, err)

	expectedPath := filepath.Join(config.Conf.Storage.ProcessedDir, doc.ID+"_processed.json")
	assert.Equal(t, expectedPath, doc.ProcessedPath)

	data, err := os.ReadFile(expectedPath)
	require.NoError(t, err)

	var artifact model.ProcessedArtifact
	require.NoError(t, json.Unmarshal(data, &artifact))
	assert.Equal(t, doc.ID, artifact.ID)
	assert.Equal(t, "notes.txt", artifact.FileName)
	assert.Equal(t, "artifact content", artifact.FullText)
	assert.Equal(t, []string{"artifact content"}, artifact.PageTexts)
	assert.Equal(t, 1, artifact.PageCount)
}

func TestIngestEmptyFileStillIndexed(t *testing.T) {
	store := newMemStore()
	svc := newTestIngestService(t, store)

	path := writeTempFile(t, "empty.txt", "")
	doc, err := svc.Ingest(context.Background(), path, "empty.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	// 空文档用单个空分块占位，保持可检索
	assert.Equal(t, []string{""}, store.lastChunks)
}

func TestIngestRejectsUnsupportedFormat(t *testing.T) {
	store := newMemStore()
	svc := newTestIngestService(t, store)

	path := writeTempFile(t, "binary.exe", "MZ")
	_, err := svc.Ingest(context.Background(), path, "binary.exe")
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
	assert.Empty(t, store.upserted)
}

func TestIngestLongTextIsChunked(t *testing.T) {
	store := newMemStore()
	svc := newTestIngestService(t, store)
	config.Conf.Chunking.ChunkSize = 50
	config.Conf.Chunking.ChunkOverlap = 10

	content := strings.Repeat("word ", 100)
	path := writeTempFile(t, "long.txt", content)
	_, err := svc.Ingest(context.Background(), path, "long.txt")
	require.NoError(t, err)

	assert.Greater(t, len(store.lastChunks), 1)
	for _, chunk := range store.lastChunks {
		// 每块不超过 chunkSize + overlap
		assert.LessOrEqual(t, len([]rune(chunk)), 60)
	}
}
