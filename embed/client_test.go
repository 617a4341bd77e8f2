package embed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/internal/retry"
)

// fakeProvider scripts per-call outcomes so retry behaviour can be asserted
// without a network.
type fakeProvider struct {
	calls    int
	maxBatch int
	// failures[n] is the error to return on call n (0-based); nil means
	// success.
	failures map[int]error
}

func (f *fakeProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	call := f.calls
	f.calls++
	if err, ok := f.failures[call]; ok && err != nil {
		return nil, err
	}

	embeddings := make([]Data, len(req.Input))
	for i := range req.Input {
		// Encode the text length so alignment is checkable.
		embeddings[i] = Data{Index: i, Embedding: []float64{float64(len(req.Input[i]))}}
	}
	return &Response{Provider: f.Name(), Embeddings: embeddings}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Dimensions() int { return 1 }

func (f *fakeProvider) MaxBatchSize() int {
	if f.maxBatch > 0 {
		return f.maxBatch
	}
	return 96
}

func fastPolicy() *retry.Policy {
	return &retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func rateLimitErr() error {
	return &Error{Code: ErrRateLimited, Message: "slow down", HTTPStatus: 429, Retryable: true, Provider: "fake"}
}

func TestClient_EmbedDocuments_Batching(t *testing.T) {
	p := &fakeProvider{maxBatch: 2}
	c := NewClient(p, 2, fastPolicy(), zap.NewNop())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	res := c.EmbedDocuments(context.Background(), texts)

	assert.Equal(t, 3, p.calls) // 2+2+1
	assert.Equal(t, 5, res.Report.TotalTexts)
	assert.Equal(t, 5, res.Report.Succeeded)
	assert.Equal(t, 0, res.Report.Failed)
	assert.Equal(t, 1.0, res.Report.SuccessRate())

	require.Len(t, res.Vectors, 5)
	for i, v := range res.Vectors {
		assert.Equal(t, i, res.Indexes[i])
		assert.Equal(t, float64(len(texts[i])), v[0], "vector %d misaligned", i)
	}
}

func TestClient_EmbedDocuments_RateLimitRetried(t *testing.T) {
	p := &fakeProvider{failures: map[int]error{0: rateLimitErr()}}
	c := NewClient(p, 96, fastPolicy(), zap.NewNop())

	res := c.EmbedDocuments(context.Background(), []string{"a", "b"})

	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 2, res.Report.Succeeded)
	assert.Equal(t, 0, res.Report.Failed)
}

func TestClient_EmbedDocuments_FailedBatchSkipped(t *testing.T) {
	// First batch fails on every attempt; second batch succeeds. The run
	// must continue and the result must stay aligned via Indexes.
	p := &fakeProvider{
		maxBatch: 2,
		failures: map[int]error{0: rateLimitErr(), 1: rateLimitErr(), 2: rateLimitErr()},
	}
	c := NewClient(p, 2, fastPolicy(), zap.NewNop())

	texts := []string{"a", "bb", "ccc", "dddd"}
	res := c.EmbedDocuments(context.Background(), texts)

	assert.Equal(t, 2, res.Report.Succeeded)
	assert.Equal(t, 2, res.Report.Failed)
	assert.Equal(t, 1, res.Report.FailedBatches)
	assert.Equal(t, 0.5, res.Report.SuccessRate())
	assert.Equal(t, []string{"a", "bb"}, res.Report.FailedSamples)

	require.Len(t, res.Vectors, 2)
	assert.Equal(t, []int{2, 3}, res.Indexes)
	assert.Equal(t, float64(3), res.Vectors[0][0])
	assert.Equal(t, float64(4), res.Vectors[1][0])
}

func TestClient_EmbedDocuments_NonRetryableFailsFast(t *testing.T) {
	p := &fakeProvider{
		failures: map[int]error{0: validationError("bad batch")},
	}
	c := NewClient(p, 96, fastPolicy(), zap.NewNop())

	res := c.EmbedDocuments(context.Background(), []string{"a"})

	assert.Equal(t, 1, p.calls) // no retry on caller errors
	assert.Equal(t, 1, res.Report.Failed)
}

func TestClient_EmbedDocuments_Empty(t *testing.T) {
	p := &fakeProvider{}
	c := NewClient(p, 96, fastPolicy(), zap.NewNop())

	res := c.EmbedDocuments(context.Background(), nil)
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, 1.0, res.Report.SuccessRate())
	assert.Empty(t, res.Vectors)
}

func TestClient_EmbedQuery(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := NewClient(&fakeProvider{}, 96, fastPolicy(), zap.NewNop())
		vec, err := c.EmbedQuery(context.Background(), "what is a chunk")
		require.NoError(t, err)
		assert.Equal(t, []float64{15}, vec)
	})

	t.Run("blank rejected before any call", func(t *testing.T) {
		p := &fakeProvider{}
		c := NewClient(p, 96, fastPolicy(), zap.NewNop())
		_, err := c.EmbedQuery(context.Background(), "   \t ")
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Equal(t, 0, p.calls)
	})

	t.Run("exhausted retries are a hard error", func(t *testing.T) {
		p := &fakeProvider{failures: map[int]error{
			0: rateLimitErr(), 1: rateLimitErr(), 2: rateLimitErr(),
		}}
		c := NewClient(p, 96, fastPolicy(), zap.NewNop())
		_, err := c.EmbedQuery(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, 3, p.calls)
	})

	t.Run("recovers after transient failure", func(t *testing.T) {
		p := &fakeProvider{failures: map[int]error{0: fmt.Errorf("connection reset")}}
		c := NewClient(p, 96, fastPolicy(), zap.NewNop())
		vec, err := c.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, vec)
	})
}

func TestClient_BatchSizeClampedToProviderCap(t *testing.T) {
	p := &fakeProvider{maxBatch: 4}
	c := NewClient(p, 100, fastPolicy(), zap.NewNop())
	assert.Equal(t, 4, c.batchSize)
}
