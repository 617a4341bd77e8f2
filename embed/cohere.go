package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CohereConfig configures the Cohere embedding provider.
type CohereConfig struct {
	BaseURL string        `json:"base_url,omitempty"`
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// CohereProvider implements Provider against the Cohere v2 embed API.
// embed-english-v3.0 produces 1024-dimensional vectors and accepts at most
// 96 texts per request.
type CohereProvider struct {
	cfg    CohereConfig
	client *http.Client
}

// NewCohereProvider creates a Cohere-backed embedding provider.
func NewCohereProvider(cfg CohereConfig) *CohereProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "embed-english-v3.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &CohereProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *CohereProvider) Name() string { return "cohere-embedding" }

func (p *CohereProvider) Model() string { return p.cfg.Model }

func (p *CohereProvider) Dimensions() int { return 1024 }

func (p *CohereProvider) MaxBatchSize() int { return 96 }

type cohereEmbedRequest struct {
	Texts          []string `json:"texts"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	Truncate       string   `json:"truncate,omitempty"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereEmbedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float64 `json:"float"`
	} `json:"embeddings"`
	Meta struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Embed generates embeddings for one batch of texts.
func (p *CohereProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Input) == 0 {
		return nil, validationError("input texts are required")
	}
	if len(req.Input) > p.MaxBatchSize() {
		return nil, validationError(fmt.Sprintf("batch of %d exceeds provider cap %d", len(req.Input), p.MaxBatchSize()))
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := cohereEmbedRequest{
		Texts:          req.Input,
		Model:          model,
		EmbeddingTypes: []string{"float"},
	}

	switch req.InputType {
	case InputTypeQuery:
		body.InputType = "search_query"
	default:
		body.InputType = "search_document"
	}

	if req.Truncate {
		body.Truncate = "END"
	}

	respBody, err := p.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	var cResp cohereEmbedResponse
	if err := json.Unmarshal(respBody, &cResp); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w", err)
	}

	if len(cResp.Embeddings.Float) != len(req.Input) {
		return nil, &Error{
			Code:      ErrUpstreamError,
			Message:   fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(req.Input), len(cResp.Embeddings.Float)),
			Retryable: true,
			Provider:  p.Name(),
		}
	}

	embeddings := make([]Data, len(cResp.Embeddings.Float))
	for i, emb := range cResp.Embeddings.Float {
		embeddings[i] = Data{Index: i, Embedding: emb}
	}

	return &Response{
		ID:         cResp.ID,
		Provider:   p.Name(),
		Model:      model,
		Embeddings: embeddings,
		Usage:      Usage{InputTokens: cResp.Meta.BilledUnits.InputTokens},
	}, nil
}

func (p *CohereProvider) doRequest(ctx context.Context, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v2/embed", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{
			Code:       ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, string(respBody), p.Name())
	}

	return respBody, nil
}
