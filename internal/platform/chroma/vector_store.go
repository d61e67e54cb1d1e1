package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/ctxutil"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

const (
	metadataActivityIDKey = "activityId"
	metadataTitleKey      = "title"
	metadataSourceTypeKey = "sourceType"

	maxErrorBodyBytes = 1024
	defaultFetchLimit = 100
)

// VectorStore reads embeddings out of the collection the ingestion side
// writes into. The graph builders only ever need bulk reads and point
// lookups, so that is all the interface exposes.
type VectorStore interface {
	GetAllEmbeddings(ctx context.Context, limit int) (*EmbeddingBatch, error)
	GetEmbeddingByID(ctx context.Context, id string) (*types.EmbeddingRecord, error)
}

// EmbeddingBatch is one bulk read. Skipped counts entries dropped because
// they had no vector or the wrong dimension.
type EmbeddingBatch struct {
	Records []types.EmbeddingRecord
	Skipped int
}

type vectorStore struct {
	log          *logger.Logger
	cfg          Config
	baseURL      string
	collectionID string
	http         *http.Client
}

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaGetResult struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "ChromaVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info(
		"Chroma vector store selected",
		"provider", "chroma",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"collection_id", s.collectionID,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *vectorStore) GetAllEmbeddings(ctx context.Context, limit int) (*EmbeddingBatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "get_all"
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	req := map[string]any{
		"limit":   limit,
		"include": []string{"embeddings", "metadatas"},
	}
	var result chromaGetResult
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/get"), req, &result); err != nil {
		return nil, err
	}

	batch := &EmbeddingBatch{
		Records: make([]types.EmbeddingRecord, 0, len(result.IDs)),
	}
	for i, rawID := range result.IDs {
		id := strings.TrimSpace(rawID)
		if id == "" {
			batch.Skipped++
			continue
		}
		var vector []float32
		if i < len(result.Embeddings) {
			vector = result.Embeddings[i]
		}
		if len(vector) == 0 {
			batch.Skipped++
			continue
		}
		if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
			batch.Skipped++
			continue
		}
		var metadata types.EmbeddingMetadata
		if i < len(result.Metadatas) {
			metadata = decodeMetadata(result.Metadatas[i])
		}
		batch.Records = append(batch.Records, types.EmbeddingRecord{
			ID:       id,
			Vector:   vector,
			Metadata: metadata,
		})
	}

	if batch.Skipped > 0 {
		s.log.Warn(
			"chroma returned malformed embedding entries",
			"op", op,
			"skipped", batch.Skipped,
			"kept", len(batch.Records),
		)
	}
	return batch, nil
}

func (s *vectorStore) GetEmbeddingByID(ctx context.Context, id string) (*types.EmbeddingRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "get_by_id"
	embeddingID := strings.TrimSpace(id)
	if embeddingID == "" {
		return nil, opErr(op, OperationErrorValidation, "embedding id is required", nil)
	}

	req := map[string]any{
		"ids":     []string{embeddingID},
		"include": []string{"embeddings", "metadatas"},
	}
	var result chromaGetResult
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/get"), req, &result); err != nil {
		return nil, err
	}

	// An unknown id is an expected miss, not an error.
	idx := -1
	for i, got := range result.IDs {
		if strings.TrimSpace(got) == embeddingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	var vector []float32
	if idx < len(result.Embeddings) {
		vector = result.Embeddings[idx]
	}
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf(
				"embedding %q dimension mismatch: expected=%d got=%d",
				embeddingID,
				s.cfg.VectorDim,
				len(vector),
			),
			nil,
		)
	}
	var metadata types.EmbeddingMetadata
	if idx < len(result.Metadatas) {
		metadata = decodeMetadata(result.Metadatas[idx])
	}
	return &types.EmbeddingRecord{
		ID:       embeddingID,
		Vector:   vector,
		Metadata: metadata,
	}, nil
}

func (s *vectorStore) verifyReady(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("chroma vector store not initialized")
	}
	const op = "bootstrap_verify"

	heartbeatReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build heartbeat request failed", err)
	}
	heartbeatResp, err := s.http.Do(heartbeatReq)
	if err != nil {
		return classifyHTTPCallError(op, "chroma heartbeat failed", err)
	}
	_ = heartbeatResp.Body.Close()
	if heartbeatResp.StatusCode < 200 || heartbeatResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: heartbeatResp.StatusCode,
			Message:    fmt.Sprintf("chroma heartbeat returned status=%d", heartbeatResp.StatusCode),
		}
	}

	var collection chromaCollection
	if err := s.doJSON(
		ctx,
		op,
		http.MethodGet,
		"/api/v1/collections/"+s.cfg.Collection,
		nil,
		&collection,
	); err != nil {
		var typed *OperationError
		if errors.As(err, &typed) && typed.StatusCode == http.StatusNotFound {
			return &OperationError{
				Code:       OperationErrorCollectionNotFound,
				Operation:  op,
				StatusCode: typed.StatusCode,
				Message:    fmt.Sprintf("chroma collection %q not found", s.cfg.Collection),
				Cause:      err,
			}
		}
		return err
	}
	if strings.TrimSpace(collection.ID) == "" {
		return opErr(op, OperationErrorDecodeFailed, fmt.Sprintf("chroma collection %q has no id", s.cfg.Collection), nil)
	}
	s.collectionID = strings.TrimSpace(collection.ID)
	return nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "chroma request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("chroma http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode chroma response failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func decodeMetadata(in map[string]any) types.EmbeddingMetadata {
	var out types.EmbeddingMetadata
	if len(in) == 0 {
		return out
	}
	if v, ok := in[metadataActivityIDKey].(string); ok {
		out.ActivityID = strings.TrimSpace(v)
	}
	if v, ok := in[metadataTitleKey].(string); ok {
		out.Title = strings.TrimSpace(v)
	}
	if v, ok := in[metadataSourceTypeKey].(string); ok {
		out.SourceType = strings.TrimSpace(v)
	}
	return out
}

func (s *vectorStore) collectionPath(suffix string) string {
	path := "/api/v1/collections/" + s.collectionID
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
