// Package vectordb owns the Qdrant vector collection: lifecycle, payload
// indexes, deterministic point IDs, acknowledged upserts and similarity
// search.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/chunk"
)

// indexedFields are the payload fields carrying a keyword index for filtered
// lookups.
var indexedFields = []string{"source_url", "chunk_id"}

// Config configures the Qdrant-backed store.
type Config struct {
	URL        string        `json:"url"`
	APIKey     string        `json:"api_key,omitempty"`
	Collection string        `json:"collection"`
	VectorSize int           `json:"vector_size"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// Payload is the denormalized chunk record stored with each point. Fixed,
// typed fields: untyped maps stop at this boundary.
type Payload struct {
	SourceURL      string   `json:"source_url"`
	PageTitle      string   `json:"page_title"`
	SectionHeaders []string `json:"section_headers"`
	ChunkID        string   `json:"chunk_id"`
	ChunkIndex     int      `json:"chunk_index"`
	ChunkText      string   `json:"chunk_text"`
	Timestamp      string   `json:"timestamp"`
	TokenCount     int      `json:"chunk_size_tokens"`
}

// ScoredPoint is one raw similarity hit.
type ScoredPoint struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// CollectionStats is the read-only introspection used for post-ingestion
// verification.
type CollectionStats struct {
	Name        string `json:"name"`
	PointsCount int    `json:"points_count"`
	Status      string `json:"status"`
}

// QdrantStore talks to Qdrant's REST API. It holds no mutable state beyond
// the HTTP client, so concurrent callers need no locking.
type QdrantStore struct {
	cfg     Config
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewQdrantStore creates a Qdrant-backed store.
func NewQdrantStore(cfg Config, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 1024
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_store")),
	}
}

// Collection returns the configured collection name.
func (s *QdrantStore) Collection() string { return s.cfg.Collection }

// Exists reports whether the collection is present.
func (s *QdrantStore) Exists(ctx context.Context) (bool, error) {
	var resp struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.collectionPath("/exists"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Result.Exists, nil
}

// EnsureCollection creates the collection (cosine distance, configured
// dimension) when absent and makes sure the keyword payload indexes exist.
// Idempotent: the existence checks make "already there" an explicit branch,
// so nothing is created blindly and no error is swallowed.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return fmt.Errorf("qdrant collection is required")
	}
	if s.cfg.VectorSize <= 0 {
		return fmt.Errorf("qdrant vector size must be > 0")
	}

	exists, err := s.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}

	if exists {
		s.logger.Info("collection exists", zap.String("collection", s.cfg.Collection))
	} else {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     s.cfg.VectorSize,
				"distance": "Cosine",
			},
		}
		if err := s.doJSON(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.logger.Info("created collection",
			zap.String("collection", s.cfg.Collection),
			zap.Int("vector_size", s.cfg.VectorSize))
	}

	return s.ensureIndexes(ctx)
}

// ensureIndexes creates the keyword payload indexes that are not already
// present according to the collection's payload schema.
func (s *QdrantStore) ensureIndexes(ctx context.Context) error {
	var info struct {
		Result struct {
			PayloadSchema map[string]json.RawMessage `json:"payload_schema"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &info); err != nil {
		return fmt.Errorf("read payload schema: %w", err)
	}

	for _, field := range indexedFields {
		if _, ok := info.Result.PayloadSchema[field]; ok {
			continue
		}
		body := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/index?wait=true"), body, nil); err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
		s.logger.Info("created payload index", zap.String("field", field))
	}

	return nil
}

type pointStruct struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Upsert pairs each chunk with its vector by position and issues one batched,
// wait-acknowledged write. A write failure is returned to the caller: the
// ingestion run must abort rather than silently lose points.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float64) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	points := make([]pointStruct, 0, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != s.cfg.VectorSize {
			return 0, fmt.Errorf("vector %d dimension mismatch: got=%d want=%d", i, len(vectors[i]), s.cfg.VectorSize)
		}
		points = append(points, pointStruct{
			ID:     PointID(ch.Text, ch.Metadata.SourceURL),
			Vector: vectors[i],
			Payload: Payload{
				SourceURL:      ch.Metadata.SourceURL,
				PageTitle:      ch.Metadata.PageTitle,
				SectionHeaders: ch.Metadata.SectionHeaders,
				ChunkID:        ch.Hash,
				ChunkIndex:     ch.Metadata.ChunkIndex,
				ChunkText:      ch.Text,
				Timestamp:      ch.Metadata.Timestamp,
				TokenCount:     ch.Metadata.TokenCount,
			},
		})
	}

	body := struct {
		Points []pointStruct `json:"points"`
	}{Points: points}

	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}

	s.logger.Info("upserted points",
		zap.Int("count", len(points)),
		zap.String("collection", s.cfg.Collection))
	return len(points), nil
}

// Search runs a nearest-neighbor query bounded by limit and returns hits in
// provider-native descending-score order.
func (s *QdrantStore) Search(ctx context.Context, queryVector []float64, limit int) ([]ScoredPoint, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if limit <= 0 {
		return []ScoredPoint{}, nil
	}

	body := struct {
		Vector      []float64 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
	}{
		Vector:      queryVector,
		Limit:       limit,
		WithPayload: true,
	}

	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), body, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	out := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, ScoredPoint{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return out, nil
}

// Stats returns point count and collection status.
func (s *QdrantStore) Stats(ctx context.Context) (CollectionStats, error) {
	var resp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int    `json:"points_count"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &resp); err != nil {
		return CollectionStats{}, fmt.Errorf("collection stats: %w", err)
	}

	return CollectionStats{
		Name:        s.cfg.Collection,
		PointsCount: resp.Result.PointsCount,
		Status:      resp.Result.Status,
	}, nil
}

// CountByURL counts stored chunks for one source URL via a filtered scroll.
// Used as a spot check after ingestion.
func (s *QdrantStore) CountByURL(ctx context.Context, sourceURL string) (int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_url", "match": map[string]any{"value": sourceURL}},
			},
		},
		"limit":        10000,
		"with_payload": false,
	}

	var resp struct {
		Result struct {
			Points []json.RawMessage `json:"points"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/scroll"), body, &resp); err != nil {
		return 0, fmt.Errorf("scroll by url: %w", err)
	}
	return len(resp.Result.Points), nil
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(s.cfg.Collection), suffix)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
