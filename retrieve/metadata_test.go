package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/docsearch/vectordb"
)

func intPtr(n int) *int { return &n }

func completeResult(rank int) Result {
	return Result{
		ChunkID:         "id",
		ChunkText:       "text",
		SimilarityScore: 0.9,
		Rank:            rank,
		Metadata: ResultMetadata{
			SourceURL:      "https://docs.example.com/a",
			PageTitle:      "Title",
			SectionHeaders: []string{"H1"},
			ChunkIndex:     intPtr(0),
		},
	}
}

func TestValidateMetadata_AllValid(t *testing.T) {
	report := ValidateMetadata([]Result{completeResult(1), completeResult(2)})

	assert.Equal(t, 2, report.TotalResults)
	assert.Equal(t, 2, report.ValidResults)
	assert.Equal(t, 0, report.InvalidResults)
	assert.Empty(t, report.Issues)
}

func TestValidateMetadata_ChunkIndexZeroIsValid(t *testing.T) {
	r := completeResult(1)
	r.Metadata.ChunkIndex = intPtr(0)

	report := ValidateMetadata([]Result{r})
	assert.Equal(t, 1, report.ValidResults)
}

func TestValidateMetadata_MissingFields(t *testing.T) {
	bad := completeResult(1)
	bad.Metadata.PageTitle = ""
	bad.Metadata.ChunkIndex = nil

	report := ValidateMetadata([]Result{completeResult(1), bad})

	assert.Equal(t, 2, report.TotalResults)
	assert.Equal(t, 1, report.ValidResults)
	assert.Equal(t, 1, report.InvalidResults)
	require.Len(t, report.Issues, 2)
	assert.Contains(t, report.Issues[0], "empty page_title")
	assert.Contains(t, report.Issues[1], "empty chunk_index")
}

func TestValidateMetadata_Empty(t *testing.T) {
	report := ValidateMetadata(nil)
	assert.Equal(t, 0, report.TotalResults)
	assert.Empty(t, report.Issues)
}

func TestRunValidation_DefaultQueries(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float64{1}}
	index := &fakeIndex{hits: []vectordb.ScoredPoint{hit("a", 0.9, 0), hit("b", 0.7, 1)}}

	sweep, err := newTestSearcher(embedder, index).RunValidation(context.Background(), nil, 5)
	require.NoError(t, err)

	require.Len(t, sweep, len(DefaultValidationQueries))
	for i, qv := range sweep {
		assert.Equal(t, "success", qv.Response.Status)
		assert.Equal(t, DefaultValidationQueries[i], qv.Response.Query.Text)
		assert.Equal(t, qv.Response.TotalResults, qv.Metadata.TotalResults)
	}
	assert.Equal(t, len(DefaultValidationQueries), embedder.calls)
}

func TestRunValidation_FailuresStayInSweep(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	index := &fakeIndex{}

	sweep, err := newTestSearcher(embedder, index).RunValidation(
		context.Background(), []string{"q1", "q2"}, 5)
	require.NoError(t, err, "per-query failures must not abort the sweep")

	require.Len(t, sweep, 2)
	for _, qv := range sweep {
		assert.Equal(t, "error", qv.Response.Status)
		assert.Equal(t, 0, qv.Metadata.TotalResults)
	}
}
