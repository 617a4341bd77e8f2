package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cohereServer(t *testing.T, handler http.HandlerFunc) *CohereProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCohereProvider(CohereConfig{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestCohereProvider_Embed(t *testing.T) {
	var got cohereEmbedRequest
	p := cohereServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := map[string]any{
			"id": "emb-1",
			"embeddings": map[string]any{
				"float": [][]float64{{0.1, 0.2}, {0.3, 0.4}},
			},
			"meta": map[string]any{
				"billed_units": map[string]any{"input_tokens": 12},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := p.Embed(context.Background(), &Request{
		Input:     []string{"first", "second"},
		InputType: InputTypeDocument,
		Truncate:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "search_document", got.InputType)
	assert.Equal(t, "END", got.Truncate)
	assert.Equal(t, []string{"float"}, got.EmbeddingTypes)
	assert.Equal(t, "embed-english-v3.0", got.Model)

	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Embeddings[0].Embedding)
	assert.Equal(t, 1, resp.Embeddings[1].Index)
	assert.Equal(t, 12, resp.Usage.InputTokens)
}

func TestCohereProvider_QueryInputType(t *testing.T) {
	var got cohereEmbedRequest
	p := cohereServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{"float": [][]float64{{1.0}}},
		})
	})

	_, err := p.Embed(context.Background(), &Request{Input: []string{"q"}, InputType: InputTypeQuery})
	require.NoError(t, err)
	assert.Equal(t, "search_query", got.InputType)
}

func TestCohereProvider_RateLimitMapped(t *testing.T) {
	p := cohereServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := p.Embed(context.Background(), &Request{Input: []string{"x"}})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
}

func TestCohereProvider_BadRequestNotRetryable(t *testing.T) {
	p := cohereServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	})

	_, err := p.Embed(context.Background(), &Request{Input: []string{"x"}})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.False(t, IsRateLimited(err))
}

func TestCohereProvider_CountMismatchIsUpstreamError(t *testing.T) {
	p := cohereServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{"float": [][]float64{{1.0}}},
		})
	})

	_, err := p.Embed(context.Background(), &Request{Input: []string{"a", "b"}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCohereProvider_EmptyInputRejected(t *testing.T) {
	p := NewCohereProvider(CohereConfig{APIKey: "k"})
	_, err := p.Embed(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCohereProvider_BatchCapEnforced(t *testing.T) {
	p := NewCohereProvider(CohereConfig{APIKey: "k"})
	texts := make([]string, 97)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := p.Embed(context.Background(), &Request{Input: texts})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
