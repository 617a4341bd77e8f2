package embed

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/internal/retry"
)

// maxFailedSamples bounds how many texts from a failed batch are kept for
// diagnosis.
const maxFailedSamples = 5

// Report is the explicit outcome of one EmbedDocuments call. Counters live in
// the returned value rather than in client state so concurrent or repeated
// calls cannot contaminate each other.
type Report struct {
	TotalTexts    int      `json:"total_texts"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	TotalBatches  int      `json:"total_batches"`
	FailedBatches int      `json:"failed_batches"`
	FailedSamples []string `json:"failed_samples,omitempty"`
}

// SuccessRate returns the fraction of input texts that produced a vector.
// An empty run counts as fully successful.
func (r Report) SuccessRate() float64 {
	if r.TotalTexts == 0 {
		return 1.0
	}
	return float64(r.Succeeded) / float64(r.TotalTexts)
}

// DocumentsResult pairs the vectors of a run with the input positions they
// belong to. Indexes[i] is the position of Vectors[i] in the original text
// slice, so callers can line results back up even when batches failed.
type DocumentsResult struct {
	Vectors [][]float64
	Indexes []int
	Report  Report
}

// Client batches texts through a Provider with exponential backoff per batch.
// Batches run sequentially, in order, to keep retry behaviour simple and to
// respect provider rate limits.
type Client struct {
	provider  Provider
	batchSize int
	policy    *retry.Policy
	logger    *zap.Logger
}

// NewClient creates a batching embedding client. batchSize is clamped to the
// provider's cap; a nil policy gets the default 2^attempt-seconds backoff.
func NewClient(provider Provider, batchSize int, policy *retry.Policy, logger *zap.Logger) *Client {
	if batchSize <= 0 || batchSize > provider.MaxBatchSize() {
		batchSize = provider.MaxBatchSize()
	}
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		provider:  provider,
		batchSize: batchSize,
		policy:    policy,
		logger:    logger.With(zap.String("component", "embed_client")),
	}
}

// EmbedDocuments embeds texts for indexing. A batch that exhausts its retries
// is recorded in the report and excluded from the result; the run continues
// with the next batch. Partial failure is reported, never fatal.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) DocumentsResult {
	result := DocumentsResult{
		Report: Report{TotalTexts: len(texts)},
	}

	retryer := retry.New(c.policy, IsRetryable, c.logger)

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		batchNum := start/c.batchSize + 1
		result.Report.TotalBatches++

		var resp *Response
		err := retryer.Do(ctx, func() error {
			var embedErr error
			resp, embedErr = c.provider.Embed(ctx, &Request{
				Input:     batch,
				InputType: InputTypeDocument,
				Truncate:  true,
			})
			if embedErr != nil && IsRateLimited(embedErr) {
				c.logger.Warn("rate limited", zap.Int("batch", batchNum))
			}
			return embedErr
		})
		if err != nil {
			result.Report.Failed += len(batch)
			result.Report.FailedBatches++
			for _, t := range batch[:min(maxFailedSamples, len(batch))] {
				result.Report.FailedSamples = append(result.Report.FailedSamples, truncate(t, 120))
			}
			c.logger.Error("batch failed after retries",
				zap.Int("batch", batchNum),
				zap.Int("texts", len(batch)),
				zap.Error(err))
			continue
		}

		for i, emb := range resp.Embeddings {
			result.Vectors = append(result.Vectors, emb.Embedding)
			result.Indexes = append(result.Indexes, start+i)
		}
		result.Report.Succeeded += len(batch)

		c.logger.Info("batch embedded",
			zap.Int("batch", batchNum),
			zap.Int("texts", len(batch)))
	}

	return result
}

// EmbedQuery embeds a single query text. Unlike document embedding there is
// no smaller unit to fall back to, so exhausted retries surface as a hard
// error. A blank query is a validation failure and is never sent upstream.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if strings.TrimSpace(query) == "" {
		return nil, validationError("query cannot be empty")
	}

	var vector []float64
	retryer := retry.New(c.policy, IsRetryable, c.logger)

	err := retryer.Do(ctx, func() error {
		resp, embedErr := c.provider.Embed(ctx, &Request{
			Input:     []string{query},
			InputType: InputTypeQuery,
			Truncate:  true,
		})
		if embedErr != nil {
			return embedErr
		}
		if len(resp.Embeddings) == 0 {
			return &Error{
				Code:      ErrUpstreamError,
				Message:   "no embeddings returned",
				Retryable: true,
				Provider:  c.provider.Name(),
			}
		}
		vector = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("query embedded", zap.Int("dimensions", len(vector)))
	return vector, nil
}

// Dimensions exposes the provider's vector dimensionality.
func (c *Client) Dimensions() int { return c.provider.Dimensions() }

// Model returns the configured embedding model name.
func (c *Client) Model() string { return c.provider.Model() }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
