package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion"
)

type stubIngester struct {
	resp *ingestion.IngestResponse
	err  error
	got  *ingestion.IngestRequest
}

func (s *stubIngester) Ingest(_ context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	s.got = req
	return s.resp, s.err
}

func serve(t *testing.T, ing Ingester, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	New(ing).Routes(mux)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestIngest_Accepted(t *testing.T) {
	ing := &stubIngester{resp: &ingestion.IngestResponse{DocumentID: "d1", Status: ingestion.StatusAccepted}}

	rec := serve(t, ing, `{"Subject":"Hà Nội","Summary":"","Content":"Nguyễn Văn A"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, ing.got)
	assert.Equal(t, "Nguyễn Văn A", ing.got.Content)
	var resp ingestion.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "d1", resp.DocumentID)
}

func TestIngest_DuplicateIsOK(t *testing.T) {
	ing := &stubIngester{resp: &ingestion.IngestResponse{DocumentID: "d1", Status: ingestion.StatusDuplicate}}

	rec := serve(t, ing, `{"Content":"x"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngest_BadJSON(t *testing.T) {
	rec := serve(t, &stubIngester{}, `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestIngest_ValidationFields(t *testing.T) {
	ing := &stubIngester{}
	rec := serve(t, ing, `{"Subject":"s"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Content"`)
	assert.Nil(t, ing.got)
}

func TestIngest_StoreFailure(t *testing.T) {
	rec := serve(t, &stubIngester{err: errors.New("db down")}, `{"Content":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ingestion failed")
}
