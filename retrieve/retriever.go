// Package retrieve implements the query path: embed the query, search the
// vector index, filter by similarity threshold and return ranked, structured
// results. Pipeline failures never surface as Go errors to the caller; they
// become status="error" responses so the serving layer always gets a usable
// object.
package retrieve

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/internal/metrics"
	"github.com/atelier-ai/docsearch/vectordb"
)

// ErrCodeSearchFailed is the error code attached to status="error" responses.
const ErrCodeSearchFailed = "SEARCH_FAILED"

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// VectorSearcher runs nearest-neighbor queries against the index.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float64, limit int) ([]vectordb.ScoredPoint, error)
	Collection() string
}

// QueryEcho carries the query text back in the response.
type QueryEcho struct {
	Text string `json:"text"`
}

// ResultMetadata is the provenance attached to each hit. Missing payload
// fields default to empty values rather than failing the search; ChunkIndex
// is a pointer because 0 is a valid index and must be distinguishable from
// absent.
type ResultMetadata struct {
	SourceURL      string   `json:"source_url"`
	PageTitle      string   `json:"page_title"`
	SectionHeaders []string `json:"section_headers"`
	ChunkIndex     *int     `json:"chunk_index"`
}

// Result is one ranked search hit.
type Result struct {
	ChunkID         string         `json:"chunk_id"`
	ChunkText       string         `json:"chunk_text"`
	SimilarityScore float64        `json:"similarity_score"`
	Rank            int            `json:"rank"`
	Metadata        ResultMetadata `json:"metadata"`
}

// Metrics records per-stage timings for SLA observability. Total time may
// slightly exceed the sum of the measured stages.
type Metrics struct {
	QueryEmbeddingTimeMs float64 `json:"query_embedding_time_ms,omitempty"`
	VectorSearchTimeMs   float64 `json:"vector_search_time_ms,omitempty"`
	TotalExecutionTimeMs float64 `json:"total_execution_time_ms"`
	EmbeddingModel       string  `json:"embedding_model"`
	CollectionName       string  `json:"collection_name"`
}

// ResponseError describes a pipeline failure inside an error response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the structured search result. Status is "success" or "error";
// on error, Results is empty and Error is set.
type Response struct {
	Status        string         `json:"status"`
	Query         QueryEcho      `json:"query"`
	Results       []Result       `json:"results"`
	TotalResults  int            `json:"total_results"`
	RequestedTopK int            `json:"requested_top_k"`
	Metrics       Metrics        `json:"execution_metrics"`
	Error         *ResponseError `json:"error,omitempty"`
}

// Searcher is the query-time pipeline. It holds only immutable client
// handles, so concurrent callers need no locking.
type Searcher struct {
	embedder  QueryEmbedder
	index     VectorSearcher
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewSearcher creates a Searcher. The metrics collector may be nil.
func NewSearcher(embedder QueryEmbedder, index VectorSearcher, collector *metrics.Collector, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		embedder:  embedder,
		index:     index,
		collector: collector,
		logger:    logger.With(zap.String("component", "searcher")),
	}
}

// Search embeds the query, runs a nearest-neighbor search bounded by topK and
// returns hits at or above the similarity threshold with dense 1-based ranks.
// Out-of-range topK or threshold is a caller error returned directly; every
// downstream failure is folded into a status="error" response instead.
func (s *Searcher) Search(ctx context.Context, query string, topK int, threshold float64) (*Response, error) {
	if topK < 1 || topK > 100 {
		return nil, fmt.Errorf("top_k must be between 1 and 100, got %d", topK)
	}
	if threshold < 0.0 || threshold > 1.0 {
		return nil, fmt.Errorf("similarity_threshold must be between 0.0 and 1.0, got %g", threshold)
	}

	start := time.Now()
	s.logger.Info("searching", zap.String("query", query), zap.Int("top_k", topK))

	embedStart := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, query)
	embedTime := time.Since(embedStart)
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		s.collector.RecordSearch("error", embedTime, 0)
		return s.errorResponse(query, topK, start, err), nil
	}

	searchStart := time.Now()
	hits, err := s.index.Search(ctx, vector, topK)
	searchTime := time.Since(searchStart)
	if err != nil {
		s.logger.Error("vector search failed", zap.Error(err))
		s.collector.RecordSearch("error", embedTime, searchTime)
		return s.errorResponse(query, topK, start, err), nil
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		results = append(results, Result{
			ChunkID:         hit.ID,
			ChunkText:       hit.Payload.ChunkText,
			SimilarityScore: hit.Score,
			Rank:            len(results) + 1,
			Metadata:        metadataFromPayload(hit.Payload),
		})
	}

	totalTime := time.Since(start)
	s.collector.RecordSearch("success", embedTime, searchTime)
	s.logger.Info("search complete",
		zap.Int("results", len(results)),
		zap.Duration("embed_time", embedTime),
		zap.Duration("search_time", searchTime),
		zap.Duration("total_time", totalTime))

	return &Response{
		Status:        "success",
		Query:         QueryEcho{Text: query},
		Results:       results,
		TotalResults:  len(results),
		RequestedTopK: topK,
		Metrics: Metrics{
			QueryEmbeddingTimeMs: roundMs(embedTime),
			VectorSearchTimeMs:   roundMs(searchTime),
			TotalExecutionTimeMs: roundMs(totalTime),
			EmbeddingModel:       s.embedder.Model(),
			CollectionName:       s.index.Collection(),
		},
	}, nil
}

func (s *Searcher) errorResponse(query string, topK int, start time.Time, err error) *Response {
	return &Response{
		Status:        "error",
		Query:         QueryEcho{Text: query},
		Results:       []Result{},
		TotalResults:  0,
		RequestedTopK: topK,
		Metrics: Metrics{
			TotalExecutionTimeMs: roundMs(time.Since(start)),
			EmbeddingModel:       s.embedder.Model(),
			CollectionName:       s.index.Collection(),
		},
		Error: &ResponseError{
			Code:    ErrCodeSearchFailed,
			Message: err.Error(),
		},
	}
}

func metadataFromPayload(p vectordb.Payload) ResultMetadata {
	headers := p.SectionHeaders
	if headers == nil {
		headers = []string{}
	}
	idx := p.ChunkIndex
	return ResultMetadata{
		SourceURL:      p.SourceURL,
		PageTitle:      p.PageTitle,
		SectionHeaders: headers,
		ChunkIndex:     &idx,
	}
}

// roundMs converts a duration to milliseconds rounded to two decimals.
func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000*100) / 100
}

// IndexInspector is the read-only view used for startup validation.
type IndexInspector interface {
	Exists(ctx context.Context) (bool, error)
	Stats(ctx context.Context) (vectordb.CollectionStats, error)
	Collection() string
}

// ValidateIndex verifies the collection exists and returns its stats. Called
// at startup so a missing or empty collection fails fast instead of producing
// silent empty search results.
func ValidateIndex(ctx context.Context, index IndexInspector, logger *zap.Logger) (vectordb.CollectionStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	exists, err := index.Exists(ctx)
	if err != nil {
		return vectordb.CollectionStats{}, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return vectordb.CollectionStats{}, fmt.Errorf("collection %q not found", index.Collection())
	}

	stats, err := index.Stats(ctx)
	if err != nil {
		return vectordb.CollectionStats{}, fmt.Errorf("collection stats: %w", err)
	}

	logger.Info("collection validated",
		zap.String("collection", stats.Name),
		zap.Int("points", stats.PointsCount),
		zap.String("status", stats.Status))
	return stats, nil
}
