package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/vectordb"
)

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Model() string { return "embed-english-v3.0" }

type fakeIndex struct {
	hits     []vectordb.ScoredPoint
	err      error
	calls    int
	gotLimit int
}

func (f *fakeIndex) Search(ctx context.Context, vector []float64, limit int) ([]vectordb.ScoredPoint, error) {
	f.calls++
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Collection() string { return "docs" }

func hit(id string, score float64, idx int) vectordb.ScoredPoint {
	return vectordb.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: vectordb.Payload{
			SourceURL:      "https://docs.example.com/" + id,
			PageTitle:      "Title " + id,
			SectionHeaders: []string{"H"},
			ChunkID:        "hash-" + id,
			ChunkIndex:     idx,
			ChunkText:      "text " + id,
		},
	}
}

func newTestSearcher(e *fakeEmbedder, idx *fakeIndex) *Searcher {
	return NewSearcher(e, idx, nil, zap.NewNop())
}

func TestSearch_Success(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1, 0, 0}}
	index := &fakeIndex{hits: []vectordb.ScoredPoint{
		hit("a", 0.92, 0),
		hit("b", 0.71, 1),
		hit("c", 0.55, 2),
	}}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "what is it", 5, 0.0)
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "what is it", resp.Query.Text)
	assert.Equal(t, 3, resp.TotalResults)
	assert.Equal(t, 5, resp.RequestedTopK)
	assert.Equal(t, 5, index.gotLimit)
	assert.Nil(t, resp.Error)

	require.Len(t, resp.Results, 3)
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank, "ranks must be dense and 1-based")
		if i > 0 {
			assert.LessOrEqual(t, r.SimilarityScore, resp.Results[i-1].SimilarityScore)
		}
	}

	first := resp.Results[0]
	assert.Equal(t, "a", first.ChunkID)
	assert.Equal(t, "text a", first.ChunkText)
	assert.Equal(t, "https://docs.example.com/a", first.Metadata.SourceURL)
	require.NotNil(t, first.Metadata.ChunkIndex)
	assert.Equal(t, 0, *first.Metadata.ChunkIndex)

	assert.Equal(t, "embed-english-v3.0", resp.Metrics.EmbeddingModel)
	assert.Equal(t, "docs", resp.Metrics.CollectionName)
	assert.GreaterOrEqual(t, resp.Metrics.TotalExecutionTimeMs, 0.0)
}

func TestSearch_ThresholdFiltersBeforeRanking(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{hits: []vectordb.ScoredPoint{
		hit("a", 0.8, 0),
		hit("b", 0.4, 1),
	}}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "q", 5, 0.5)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ChunkID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.GreaterOrEqual(t, resp.Results[0].SimilarityScore, 0.5)
}

func TestSearch_ThresholdBoundaryKept(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{hits: []vectordb.ScoredPoint{hit("a", 0.5, 0)}}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "q", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalResults, "score equal to threshold is included")
}

func TestSearch_ValidationErrors(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{}
	s := newTestSearcher(embedder, index)

	cases := []struct {
		name      string
		topK      int
		threshold float64
	}{
		{"top_k zero", 0, 0.5},
		{"top_k above cap", 101, 0.5},
		{"threshold negative", 5, -0.1},
		{"threshold above one", 5, 1.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := s.Search(context.Background(), "q", tc.topK, tc.threshold)
			assert.Error(t, err)
			assert.Nil(t, resp)
		})
	}

	// Rejected before any network call.
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, index.calls)
}

func TestSearch_EmbedFailureYieldsErrorResponse(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("rate limited")}
	index := &fakeIndex{}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "q", 5, 0.0)
	require.NoError(t, err, "pipeline failures must not surface as Go errors")

	assert.Equal(t, "error", resp.Status)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.TotalResults)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSearchFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "rate limited")
	assert.Equal(t, 0, index.calls, "search must not run after embed failure")
	assert.Equal(t, "docs", resp.Metrics.CollectionName)
}

func TestSearch_IndexFailureYieldsErrorResponse(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{err: errors.New("connection refused")}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "q", 5, 0.0)
	require.NoError(t, err)

	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSearchFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestSearch_MissingPayloadFieldsDefaulted(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{hits: []vectordb.ScoredPoint{
		{ID: "bare", Score: 0.9, Payload: vectordb.Payload{ChunkText: "text"}},
	}}

	resp, err := newTestSearcher(embedder, index).Search(context.Background(), "q", 5, 0.0)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	md := resp.Results[0].Metadata
	assert.Equal(t, "", md.SourceURL)
	assert.Equal(t, []string{}, md.SectionHeaders, "nil headers become an empty list")
	require.NotNil(t, md.ChunkIndex)
	assert.Equal(t, 0, *md.ChunkIndex)
}

type fakeInspector struct {
	exists    bool
	existsErr error
	stats     vectordb.CollectionStats
	statsErr  error
}

func (f *fakeInspector) Exists(ctx context.Context) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeInspector) Stats(ctx context.Context) (vectordb.CollectionStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeInspector) Collection() string { return "docs" }

func TestValidateIndex(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		insp := &fakeInspector{
			exists: true,
			stats:  vectordb.CollectionStats{Name: "docs", PointsCount: 42, Status: "green"},
		}
		stats, err := ValidateIndex(context.Background(), insp, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 42, stats.PointsCount)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ValidateIndex(context.Background(), &fakeInspector{exists: false}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("exists check fails", func(t *testing.T) {
		insp := &fakeInspector{existsErr: errors.New("dial tcp: refused")}
		_, err := ValidateIndex(context.Background(), insp, zap.NewNop())
		assert.Error(t, err)
	})
}
