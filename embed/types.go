// Package embed turns chunk and query text into fixed-dimension vectors
// through an external embedding provider, with batching, retry/backoff and
// explicit per-run outcome reporting.
package embed

import "context"

// InputType tells the provider what the embedding will be used for.
// Document and query embeddings are asymmetric for retrieval models.
type InputType string

const (
	InputTypeDocument InputType = "document"
	InputTypeQuery    InputType = "query"
)

// Request is a single provider call: an ordered batch of texts.
type Request struct {
	Input     []string  `json:"input"`
	Model     string    `json:"model,omitempty"`
	InputType InputType `json:"input_type,omitempty"`
	Truncate  bool      `json:"truncate,omitempty"`
}

// Response holds index-aligned embeddings for one Request.
type Response struct {
	ID         string `json:"id,omitempty"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Embeddings []Data `json:"embeddings"`
	Usage      Usage  `json:"usage"`
}

// Data is a single embedding result.
type Data struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage reports billed tokens for a request.
type Usage struct {
	InputTokens int `json:"input_tokens"`
}

// Provider is the narrow interface the ingestion and retrieval cores consume.
type Provider interface {
	Embed(ctx context.Context, req *Request) (*Response, error)

	Name() string
	Model() string
	Dimensions() int
	MaxBatchSize() int
}
