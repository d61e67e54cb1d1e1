package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

func TestVectorStoreGetAllEmbeddingsRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/api/v1/collections/col-123/get" {
			t.Fatalf("path: want=%q got=%q", "/api/v1/collections/col-123/get", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"ids":        []string{"emb-1", "emb-2"},
			"embeddings": [][]float32{{1, 0, 0}, {0, 1, 0}},
			"metadatas": []map[string]any{
				{"activityId": "act-1", "title": "Intro to graphs", "sourceType": "article"},
				{"activityId": "act-2", "title": "Similarity search", "sourceType": "video"},
			},
		}), nil
	})

	batch, err := s.GetAllEmbeddings(context.Background(), 25)
	if err != nil {
		t.Fatalf("GetAllEmbeddings: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("records length: want=2 got=%d", len(batch.Records))
	}
	if batch.Skipped != 0 {
		t.Fatalf("skipped: want=0 got=%d", batch.Skipped)
	}
	first := batch.Records[0]
	if first.ID != "emb-1" {
		t.Fatalf("record id: want=%q got=%q", "emb-1", first.ID)
	}
	if len(first.Vector) != 3 || first.Vector[0] != 1 {
		t.Fatalf("record vector mismatch: got=%v", first.Vector)
	}
	if first.Metadata.ActivityID != "act-1" {
		t.Fatalf("record activity id: want=%q got=%q", "act-1", first.Metadata.ActivityID)
	}
	if first.Metadata.SourceType != "article" {
		t.Fatalf("record source type: want=%q got=%q", "article", first.Metadata.SourceType)
	}

	if captured["limit"] != float64(25) {
		t.Fatalf("request limit: want=25 got=%v", captured["limit"])
	}
	include, ok := captured["include"].([]any)
	if !ok || len(include) != 2 {
		t.Fatalf("request include: got=%v", captured["include"])
	}
	if include[0] != "embeddings" || include[1] != "metadatas" {
		t.Fatalf("request include values: got=%v", include)
	}
}

func TestVectorStoreGetAllEmbeddingsSkipsMalformedEntries(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"ids":        []string{"emb-1", "emb-empty", "emb-wrong-dim"},
			"embeddings": [][]float32{{1, 0, 0}, {}, {1, 2}},
			"metadatas": []map[string]any{
				{"activityId": "act-1"},
				{"activityId": "act-2"},
				{"activityId": "act-3"},
			},
		}), nil
	})

	batch, err := s.GetAllEmbeddings(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAllEmbeddings: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Fatalf("records length: want=1 got=%d", len(batch.Records))
	}
	if batch.Records[0].ID != "emb-1" {
		t.Fatalf("surviving record: want=%q got=%q", "emb-1", batch.Records[0].ID)
	}
	if batch.Skipped != 2 {
		t.Fatalf("skipped: want=2 got=%d", batch.Skipped)
	}
}

func TestVectorStoreGetEmbeddingByIDFound(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"ids":        []string{"act-1"},
			"embeddings": [][]float32{{0.5, 0.5, 0}},
			"metadatas": []map[string]any{
				{"activityId": "act-1", "title": "Intro to graphs", "sourceType": "article"},
			},
		}), nil
	})

	record, err := s.GetEmbeddingByID(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("GetEmbeddingByID: %v", err)
	}
	if record == nil {
		t.Fatalf("record: want non-nil")
	}
	if record.ID != "act-1" {
		t.Fatalf("record id: want=%q got=%q", "act-1", record.ID)
	}
	if record.Metadata.Title != "Intro to graphs" {
		t.Fatalf("record title: want=%q got=%q", "Intro to graphs", record.Metadata.Title)
	}

	ids, ok := captured["ids"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "act-1" {
		t.Fatalf("request ids: got=%v", captured["ids"])
	}
}

func TestVectorStoreGetEmbeddingByIDAbsentReturnsNil(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"ids":        []string{},
			"embeddings": [][]float32{},
			"metadatas":  []map[string]any{},
		}), nil
	})

	record, err := s.GetEmbeddingByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetEmbeddingByID: %v", err)
	}
	if record != nil {
		t.Fatalf("record: want nil got=%+v", record)
	}
}

func TestVectorStoreGetEmbeddingByIDRequiresID(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		return nil, nil
	})

	_, err := s.GetEmbeddingByID(context.Background(), "  ")
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("error code: want=%q got=%q", OperationErrorValidation, opErrTyped.Code)
	}
}

func TestVectorStoreSurfacesHTTPFailureStatus(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusInternalServerError, map[string]any{
			"error": "compaction in progress",
		}), nil
	})

	_, err := s.GetAllEmbeddings(context.Background(), 10)
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErrTyped.Code != OperationErrorQueryFailed {
		t.Fatalf("error code: want=%q got=%q", OperationErrorQueryFailed, opErrTyped.Code)
	}
	if opErrTyped.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status code: want=%d got=%d", http.StatusInternalServerError, opErrTyped.StatusCode)
	}
}

func TestClassifyHTTPCallErrorTimeout(t *testing.T) {
	err := classifyHTTPCallError("get_all", "timeout", context.DeadlineExceeded)
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErrTyped.Code != OperationErrorTimeout {
		t.Fatalf("error code: want=%q got=%q", OperationErrorTimeout, opErrTyped.Code)
	}
}

func TestClassifyHTTPCallErrorTransport(t *testing.T) {
	err := classifyHTTPCallError("get_all", "transport", fmt.Errorf("boom"))
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErrTyped.Code != OperationErrorTransportFailed {
		t.Fatalf("error code: want=%q got=%q", OperationErrorTransportFailed, opErrTyped.Code)
	}
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *vectorStore {
	t.Helper()
	client := &http.Client{
		Transport: roundTripFunc(roundTrip),
	}
	return &vectorStore{
		log:          newTestLogger(t),
		cfg:          Config{Collection: "curio_knowledge", VectorDim: 3},
		baseURL:      "http://chroma.local",
		collectionID: "col-123",
		http:         client,
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
