// Package ingest orchestrates the ingestion pipeline: crawl, chunk, filter by
// checkpoint, embed, upsert, verify, report. Stages run strictly in sequence;
// per-URL and per-batch failures are collected into the run report, and only
// collection initialization or upsert failures abort the run.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/atelier-ai/docsearch/chunk"
	"github.com/atelier-ai/docsearch/crawl"
	"github.com/atelier-ai/docsearch/embed"
	"github.com/atelier-ai/docsearch/internal/metrics"
	"github.com/atelier-ai/docsearch/vectordb"
)

// PageSource produces the pages to ingest.
type PageSource interface {
	Crawl(ctx context.Context) ([]crawl.Page, crawl.Stats, error)
}

// TextChunker splits page text into token-bounded chunks.
type TextChunker interface {
	Chunk(text, sourceURL, pageTitle string, sectionHeaders []string) []chunk.Chunk
	ValidateChunkSizes(chunks []chunk.Chunk) chunk.SizeReport
}

// DocumentEmbedder embeds batches of chunk text.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) embed.DocumentsResult
}

// IndexWriter is the vector index surface the pipeline writes to.
type IndexWriter interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float64) (int, error)
	Stats(ctx context.Context) (vectordb.CollectionStats, error)
	CountByURL(ctx context.Context, sourceURL string) (int, error)
}

// CheckpointStore tracks which chunk hashes are already durably stored.
type CheckpointStore interface {
	IsProcessed(hash string) bool
	MarkProcessed(hash string) error
	Clear() error
	Len() int
}

// Pipeline wires the ingestion stages together. It holds no mutable state of
// its own; one Run call is one batch job.
type Pipeline struct {
	source     PageSource
	chunker    TextChunker
	embedder   DocumentEmbedder
	index      IndexWriter
	checkpoint CheckpointStore
	collector  *metrics.Collector
	logger     *zap.Logger

	now func() time.Time
}

// NewPipeline creates an ingestion pipeline. The metrics collector may be
// nil.
func NewPipeline(source PageSource, chunker TextChunker, embedder DocumentEmbedder, index IndexWriter, checkpoint CheckpointStore, collector *metrics.Collector, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:     source,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		checkpoint: checkpoint,
		collector:  collector,
		logger:     logger.With(zap.String("component", "ingest_pipeline")),
		now:        time.Now,
	}
}

// Run executes the full pipeline and returns its report. With clearCheckpoint
// set, the checkpoint is wiped first for a non-incremental re-run. The
// returned error is non-nil only for structural failures (checkpoint reset,
// collection initialization, the upsert write, or context cancellation).
func (p *Pipeline) Run(ctx context.Context, clearCheckpoint bool) (*Report, error) {
	start := p.now().UTC()

	if clearCheckpoint {
		if err := p.checkpoint.Clear(); err != nil {
			return nil, fmt.Errorf("clear checkpoint: %w", err)
		}
		p.logger.Info("checkpoint cleared for fresh run")
	}

	p.logger.Info("stage 1: crawling")
	pages, crawlStats, err := p.source.Crawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	for range pages {
		p.collector.RecordPageCrawled("ok")
	}
	for range crawlStats.FailedDetails {
		p.collector.RecordPageCrawled("failed")
	}

	p.logger.Info("stage 2: chunking", zap.Int("pages", len(pages)))
	var allChunks []chunk.Chunk
	for _, page := range pages {
		chunks := p.chunker.Chunk(page.Text, page.URL, page.Title, page.SectionHeaders)
		p.collector.RecordChunksCreated(len(chunks))
		allChunks = append(allChunks, chunks...)
	}
	sizeReport := p.chunker.ValidateChunkSizes(allChunks)
	p.logger.Info("chunk validation",
		zap.Int("total", sizeReport.TotalChunks),
		zap.Float64("avg_tokens", sizeReport.AvgTokens),
		zap.Bool("within_tolerance", sizeReport.WithinTolerance))

	p.logger.Info("stage 3: filtering by checkpoint", zap.Int("known_hashes", p.checkpoint.Len()))
	var newChunks []chunk.Chunk
	for _, ch := range allChunks {
		if !p.checkpoint.IsProcessed(ch.Hash) {
			newChunks = append(newChunks, ch)
		}
	}
	p.logger.Info("checkpoint filter done",
		zap.Int("new", len(newChunks)),
		zap.Int("skipped", len(allChunks)-len(newChunks)))

	p.logger.Info("stage 4: embedding", zap.Int("chunks", len(newChunks)))
	var embedded embed.DocumentsResult
	if len(newChunks) > 0 {
		texts := make([]string, len(newChunks))
		for i, ch := range newChunks {
			texts[i] = ch.Text
		}
		embedded = p.embedder.EmbedDocuments(ctx, texts)
		for i := 0; i < embedded.Report.TotalBatches-embedded.Report.FailedBatches; i++ {
			p.collector.RecordEmbedBatch("ok")
		}
		for i := 0; i < embedded.Report.FailedBatches; i++ {
			p.collector.RecordEmbedBatch("failed")
		}
		p.logger.Info("embedding done",
			zap.Int("succeeded", embedded.Report.Succeeded),
			zap.Int("failed", embedded.Report.Failed),
			zap.Float64("success_rate", embedded.Report.SuccessRate()))
	}

	p.logger.Info("stage 5: initializing collection")
	if err := p.index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("initialize collection: %w", err)
	}

	p.logger.Info("stage 6: upserting points", zap.Int("vectors", len(embedded.Vectors)))
	inserted := 0
	if len(embedded.Vectors) > 0 {
		// Vectors line up with newChunks through the result indexes, so a
		// failed middle batch never shifts chunk/vector pairing.
		embeddedChunks := make([]chunk.Chunk, len(embedded.Indexes))
		for i, idx := range embedded.Indexes {
			embeddedChunks[i] = newChunks[idx]
		}

		inserted, err = p.index.Upsert(ctx, embeddedChunks, embedded.Vectors)
		if err != nil {
			return nil, fmt.Errorf("upsert: %w", err)
		}
		p.collector.RecordPointsUpserted(inserted)

		// Mark only after the write is acknowledged; chunks from failed
		// batches stay unmarked and are retried on the next run.
		for _, ch := range embeddedChunks {
			if err := p.checkpoint.MarkProcessed(ch.Hash); err != nil {
				p.logger.Warn("failed to persist checkpoint entry",
					zap.String("hash", ch.Hash), zap.Error(err))
			}
		}
	}

	p.logger.Info("stage 7: verifying")
	verification := p.verify(ctx, pages)

	duration := p.now().UTC().Sub(start)
	report := &Report{
		RunID:  start.Format(time.RFC3339Nano),
		Status: "success",
		Summary: Summary{
			URLsCrawled:              crawlStats.VisitedURLs,
			URLsFailed:               crawlStats.FailedURLs,
			TotalChunksCreated:       len(allChunks),
			NewChunks:                len(newChunks),
			TotalEmbeddingsGenerated: embedded.Report.Succeeded,
			TotalPointsInserted:      inserted,
			InsertionSuccessRate:     insertionRate(inserted, len(newChunks)),
		},
		ChunkSizes:   sizeReport,
		Embedding:    embedded.Report,
		Timings:      Timings{TotalDurationSeconds: math.Round(duration.Seconds()*100) / 100},
		Verification: verification,
		Errors:       crawlStats.FailedDetails,
	}

	p.logger.Info("ingestion complete",
		zap.String("run_id", report.RunID),
		zap.Int("inserted", inserted),
		zap.Float64("duration_seconds", report.Timings.TotalDurationSeconds))

	return report, nil
}

// verify reads collection state for the report. Failures here are logged and
// leave zero values; they never fail the run.
func (p *Pipeline) verify(ctx context.Context, pages []crawl.Page) Verification {
	var v Verification

	stats, err := p.index.Stats(ctx)
	if err != nil {
		p.logger.Warn("failed to read collection stats", zap.Error(err))
		return v
	}
	v.VectorCount = stats.PointsCount
	v.CollectionStatus = stats.Status

	if len(pages) > 0 {
		sample := pages[0].URL
		count, err := p.index.CountByURL(ctx, sample)
		if err != nil {
			p.logger.Warn("failed to count chunks for sample url",
				zap.String("url", sample), zap.Error(err))
			return v
		}
		v.SampleURL = sample
		v.SampleURLChunks = count
	}

	return v
}

func insertionRate(inserted, newChunks int) float64 {
	if newChunks == 0 {
		return 1.0
	}
	return float64(inserted) / float64(newChunks)
}
