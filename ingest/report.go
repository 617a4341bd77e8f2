package ingest

import (
	"github.com/atelier-ai/docsearch/chunk"
	"github.com/atelier-ai/docsearch/crawl"
	"github.com/atelier-ai/docsearch/embed"
)

// Summary aggregates the headline counts of one ingestion run.
type Summary struct {
	URLsCrawled              int     `json:"urls_crawled"`
	URLsFailed               int     `json:"urls_failed"`
	TotalChunksCreated       int     `json:"total_chunks_created"`
	NewChunks                int     `json:"new_chunks"`
	TotalEmbeddingsGenerated int     `json:"total_embeddings_generated"`
	TotalPointsInserted      int     `json:"total_points_inserted"`
	InsertionSuccessRate     float64 `json:"insertion_success_rate"`
}

// Timings records wall-clock durations for the run.
type Timings struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

// Verification is the post-ingestion read of collection state. Reported only;
// it never gates run success.
type Verification struct {
	VectorCount      int    `json:"vector_count"`
	CollectionStatus string `json:"collection_status"`
	// SampleURLChunks is the stored chunk count for the first crawled URL,
	// a cheap spot check that payload filtering works.
	SampleURL       string `json:"sample_url,omitempty"`
	SampleURLChunks int    `json:"sample_url_chunks,omitempty"`
}

// Report is the terminal output of a pipeline run. Per-URL crawl failures and
// per-batch embedding failures are embedded here rather than raised.
type Report struct {
	RunID        string            `json:"run_id"`
	Status       string            `json:"status"`
	Summary      Summary           `json:"summary"`
	ChunkSizes   chunk.SizeReport  `json:"chunk_validation"`
	Embedding    embed.Report      `json:"embedding"`
	Timings      Timings           `json:"timings"`
	Verification Verification      `json:"verification"`
	Errors       []crawl.FailedURL `json:"errors"`
}
