package chunk

import "math"

// SizeReport summarizes chunk token counts against the configured target.
// It is an ingestion health check, not a failure gate.
type SizeReport struct {
	TotalChunks     int     `json:"total_chunks"`
	AvgTokens       float64 `json:"avg_tokens,omitempty"`
	MinTokens       int     `json:"min_tokens,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	WithinTolerance bool    `json:"within_tolerance"`
	TargetSize      int     `json:"target_size,omitempty"`
}

// ValidateChunkSizes reports min/avg/max token counts and whether every chunk
// is within ±10% of the target size.
func (c *Chunker) ValidateChunkSizes(chunks []Chunk) SizeReport {
	if len(chunks) == 0 {
		return SizeReport{TotalChunks: 0, WithinTolerance: true}
	}

	targetMin := float64(c.chunkSize) * 0.9
	targetMax := float64(c.chunkSize) * 1.1

	minTokens := chunks[0].Metadata.TokenCount
	maxTokens := chunks[0].Metadata.TokenCount
	sum := 0
	within := true

	for _, ch := range chunks {
		n := ch.Metadata.TokenCount
		sum += n
		if n < minTokens {
			minTokens = n
		}
		if n > maxTokens {
			maxTokens = n
		}
		if float64(n) < targetMin || float64(n) > targetMax {
			within = false
		}
	}

	avg := float64(sum) / float64(len(chunks))

	return SizeReport{
		TotalChunks:     len(chunks),
		AvgTokens:       math.Round(avg*10) / 10,
		MinTokens:       minTokens,
		MaxTokens:       maxTokens,
		WithinTolerance: within,
		TargetSize:      c.chunkSize,
	}
}
