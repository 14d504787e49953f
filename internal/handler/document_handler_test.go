package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/extract"
	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/tasks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIngest 按扩展名决定摄取成败。
type stubIngest struct {
	ingested []string
}

func (s *stubIngest) Ingest(_ context.Context, _, originalFileName string) (*model.Document, error) {
	ext := strings.TrimPrefix(filepath.Ext(originalFileName), ".")
	if !extract.Supported(ext) {
		return nil, fmt.Errorf("%w: .%s", extract.ErrUnsupportedFormat, ext)
	}
	s.ingested = append(s.ingested, originalFileName)
	return &model.Document{
		ID:        "doc-" + originalFileName,
		FileName:  originalFileName,
		FileType:  ext,
		PageCount: 1,
	}, nil
}

func (s *stubIngest) Reprocess(context.Context, tasks.ReindexTask) error { return nil }

// stubStore 只实现 handler 用到的清单与元数据读取。
type stubStore struct {
	metas []model.DocumentMeta
}

func (s *stubStore) Upsert(context.Context, *model.Document, []string) error { return nil }
func (s *stubStore) Query(context.Context, string, []string, int) []model.ChunkMatch {
	return []model.ChunkMatch{}
}
func (s *stubStore) ListAll(context.Context) ([]model.DocumentMeta, error) { return s.metas, nil }
func (s *stubStore) Get(_ context.Context, docID string) (*model.DocumentMeta, error) {
	for i := range s.metas {
		if s.metas[i].DocID == docID {
			return &s.metas[i], nil
		}
	}
	return nil, nil
}
func (s *stubStore) GetText(context.Context, string) string { return "" }

func newUploadRequest(t *testing.T, fileNames ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range fileNames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("file content"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newDocumentRouter(t *testing.T, ingest *stubIngest, store *stubStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.Conf.Storage.UploadDir = t.TempDir()

	h := NewDocumentHandler(ingest, store)
	r := gin.New()
	r.POST("/api/v1/documents/upload", h.Upload)
	r.GET("/api/v1/documents", h.List)
	r.POST("/api/v1/documents/:docId/reindex", h.Reindex)
	return r
}

func TestUploadMixedResults(t *testing.T) {
	ingest := &stubIngest{}
	r := newDocumentRouter(t, ingest, &stubStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newUploadRequest(t, "good.txt", "bad.exe"))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success   bool `json:"success"`
		Documents []struct {
			ID       string `json:"id"`
			FileName string `json:"filename"`
		} `json:"documents"`
		Errors []struct {
			FileName string `json:"filename"`
			Error    string `json:"error"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.False(t, resp.Success)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "good.txt", resp.Documents[0].FileName)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "bad.exe", resp.Errors[0].FileName)
	assert.Equal(t, []string{"good.txt"}, ingest.ingested)
}

func TestUploadAllSucceed(t *testing.T) {
	r := newDocumentRouter(t, &stubIngest{}, &stubStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newUploadRequest(t, "a.txt", "b.md"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
}

func TestUploadNoFiles(t *testing.T) {
	r := newDocumentRouter(t, &stubIngest{}, &stubStore{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDocuments(t *testing.T) {
	store := &stubStore{metas: []model.DocumentMeta{
		{DocID: "doc-1", FileName: "a.txt"},
		{DocID: "doc-2", FileName: "b.pdf"},
	}}
	r := newDocumentRouter(t, &stubIngest{}, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Documents []model.DocumentMeta `json:"documents"`
		Count     int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "doc-1", resp.Documents[0].DocID)
}

func TestReindexUnknownDocument(t *testing.T) {
	r := newDocumentRouter(t, &stubIngest{}, &stubStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents/ghost/reindex", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
