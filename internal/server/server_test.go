package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasterwatch/api/internal/analysis"
	"disasterwatch/api/internal/config"
	"disasterwatch/api/internal/handlers"
	"disasterwatch/api/internal/ids"
	"disasterwatch/api/internal/metrics"
	"disasterwatch/api/internal/models"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	handler http.Handler
	uploads *repository.UploadRepository
	store   *storage.FilesystemStore
}

func newTestAPI(t *testing.T, maxBytes int64, evaluator analysis.Evaluator) testAPI {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "test",
		HTTP:        config.HTTPConfig{Host: "127.0.0.1", Port: 5000},
		Content:     config.ContentConfig{Dir: t.TempDir(), MaxBytes: maxBytes, FieldName: "image"},
		Storage:     config.StorageConfig{Driver: config.StorageDriverFilesystem},
		Metrics:     config.MetricsConfig{Enabled: true},
	}

	store, err := storage.NewFilesystemStore(filepath.Join(cfg.Content.Dir, "uploads"))
	require.NoError(t, err)
	uploads := repository.NewUploadRepository(func() time.Time { return testNow })

	n := 0
	collector := metrics.New()
	handlerSet := handlers.NewHandlerSet(zerolog.Nop(), cfg, handlers.Deps{
		Uploads:   uploads,
		Store:     store,
		Evaluator: evaluator,
		Metrics:   collector,
		Namer: ids.Namer{
			Now:    func() time.Time { return testNow },
			Suffix: func() string { n++; return fmt.Sprintf("s%d", n) },
		},
		Now: func() time.Time { return testNow.Add(time.Second) },
	})

	srv := NewHTTPServer(cfg, zerolog.Nop(), handlerSet, collector)
	return testAPI{handler: srv.Handler(), uploads: uploads, store: store}
}

func alertEvaluator() analysis.Evaluator {
	return analysis.EvaluatorFunc(func(context.Context, models.Upload) (models.Verdict, error) {
		return analysis.VerdictFor(true), nil
	})
}

func multipartBody(t *testing.T, field, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func png(size int) []byte {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n")
	return data
}

func (a testAPI) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a testAPI) upload(t *testing.T, field, filename, contentType string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, contentType, payload)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	return a.do(t, req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUploadAnalyzeRetrieveFlow(t *testing.T) {
	api := newTestAPI(t, 10*1024*1024, alertEvaluator())

	rec := api.upload(t, "image", "test.png", "image/png", png(2048))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "File uploaded successfully", body["message"])
	assert.Equal(t, float64(1), body["uploadId"])
	assert.Equal(t, "image-1741944600000-s1.png", body["filename"])

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/records/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode(t, rec)
	assert.Equal(t, "pending", record["status"])
	assert.Nil(t, record["analysisResult"])
	assert.Nil(t, record["analysisDetails"])
	assert.Equal(t, "test.png", record["originalname"])
	assert.Equal(t, float64(2048), record["size"])

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/analyze/1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)
	assert.Equal(t, float64(1), result["uploadId"])
	assert.Equal(t, "image-1741944600000-s1.png", result["filename"])
	assert.Equal(t, true, result["isAlert"])
	assert.Equal(t, analysis.AlertDetails, result["details"])
	assert.Equal(t, "2025-03-14T09:30:01.000Z", result["date"])

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/records/1", nil))
	record = decode(t, rec)
	assert.Equal(t, "analyzed", record["status"])
	assert.Equal(t, true, record["analysisResult"])
	assert.Equal(t, analysis.AlertDetails, record["analysisDetails"])

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads/image-1741944600000-s1.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png(2048), rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	assert.Len(t, items, 1)
}

func TestAnalyzeUnknownIDOnEmptyStore(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.do(t, httptest.NewRequest(http.MethodPost, "/api/analyze/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Upload not found", decode(t, rec)["message"])
	assert.Equal(t, 0, api.uploads.Count())
}

func TestAnalyzeInvalidID(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	for _, id := range []string{"abc", "1.5", "12abc"} {
		rec := api.do(t, httptest.NewRequest(http.MethodPost, "/api/analyze/"+id, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "Invalid upload ID", decode(t, rec)["message"])
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.upload(t, "image", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only image files are allowed", decode(t, rec)["message"])

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Empty(t, decode(t, rec)["items"])
	assert.Equal(t, 0, api.uploads.Count())
}

func TestUploadWithoutFile(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.upload(t, "document", "a.png", "image/png", png(32))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decode(t, rec)["message"])

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = api.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, api.uploads.Count())
}

func TestUploadTooLarge(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.upload(t, "image", "big.png", "image/png", png(1025))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "File too large")
	assert.Equal(t, 0, api.uploads.Count())

	rec = api.upload(t, "image", "huge.png", "image/png", png(3<<20))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, api.uploads.Count())
}

func TestGetFileNotFound(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	for _, path := range []string{"/api/uploads/missing.png", "/api/uploads/.hidden", "/api/uploads/..config"} {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestGetRecordErrors(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/records/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/records/seven", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, 1024, nil)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode(t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["storage"])
	assert.Equal(t, "test", health["environment"])

	api.upload(t, "image", "notes.txt", "text/plain", []byte("hello"))

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `disasterwatch_uploads_total{outcome="rejected"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, 1024, nil)
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
