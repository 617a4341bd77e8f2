// Package chunk splits extracted page text into token-bounded, overlapping
// segments and attaches provenance metadata plus a content hash to each one.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the target tokens per chunk.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is the token overlap carried between adjacent chunks.
	DefaultChunkOverlap = 50
)

// defaultSeparators is the layered split preference: paragraph break, line
// break, sentence end, word, character.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Metadata is the provenance record attached to every chunk and denormalized
// into the vector point payload.
type Metadata struct {
	SourceURL      string   `json:"source_url"`
	PageTitle      string   `json:"page_title"`
	SectionHeaders []string `json:"section_headers"`
	ChunkIndex     int      `json:"chunk_index"`
	Timestamp      string   `json:"timestamp"`
	TokenCount     int      `json:"token_count"`
}

// Chunk is one retrievable unit of text. Immutable once created.
type Chunk struct {
	Text     string   `json:"text"`
	Hash     string   `json:"hash"`
	Metadata Metadata `json:"metadata"`
}

// Chunker splits raw text on layered separators subject to a hard token
// budget, with trailing-token overlap between adjacent chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	tokenizer    Tokenizer
	logger       *zap.Logger

	now func() time.Time
}

// NewChunker creates a Chunker. Size and overlap fall back to the defaults
// when non-positive.
func NewChunker(chunkSize, chunkOverlap int, tokenizer Tokenizer, logger *zap.Logger) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
		tokenizer:    tokenizer,
		logger:       logger.With(zap.String("component", "chunker")),
		now:          time.Now,
	}
}

// ChunkSize returns the configured token budget per chunk.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Chunk splits text and attaches metadata. The content hash depends on the
// chunk text only, never on the provenance fields, so identical text always
// produces identical hashes across runs and sources.
func (c *Chunker) Chunk(text, sourceURL, pageTitle string, sectionHeaders []string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}

	pieces := c.splitRecursive(text, c.separators)

	ts := c.now().UTC().Format(time.RFC3339)
	chunks := make([]Chunk, 0, len(pieces))
	for idx, piece := range pieces {
		sum := sha256.Sum256([]byte(piece))
		chunks = append(chunks, Chunk{
			Text: piece,
			Hash: hex.EncodeToString(sum[:]),
			Metadata: Metadata{
				SourceURL:      sourceURL,
				PageTitle:      pageTitle,
				SectionHeaders: sectionHeaders,
				ChunkIndex:     idx,
				Timestamp:      ts,
				TokenCount:     c.tokenizer.CountTokens(piece),
			},
		})
	}

	c.logger.Info("chunked page",
		zap.String("source_url", sourceURL),
		zap.Int("chunks", len(chunks)))

	return chunks
}

// splitRecursive splits text on the first applicable separator and merges the
// pieces back into token-bounded windows. Pieces that still exceed the budget
// recurse onto the next separator level, down to single characters.
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	var final []string

	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, s := range separators {
		if s == "" {
			separator = ""
			break
		}
		if strings.Contains(text, s) {
			separator = s
			nextSeparators = separators[i+1:]
			break
		}
	}

	splits := splitKeepSeparator(text, separator)

	var good []string
	for _, s := range splits {
		if c.tokenizer.CountTokens(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.mergeSplits(good)...)
			good = nil
		}
		if len(nextSeparators) == 0 {
			// No finer separator left; emit oversized piece as-is.
			final = append(final, s)
		} else {
			final = append(final, c.splitRecursive(s, nextSeparators)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.mergeSplits(good)...)
	}

	return final
}

// mergeSplits packs consecutive splits into chunks of at most chunkSize
// tokens. When a chunk fills up, leading splits are dropped until the
// remainder fits within chunkOverlap tokens; those trailing splits seed the
// next chunk, which is what carries context across chunk boundaries.
func (c *Chunker) mergeSplits(splits []string) []string {
	var docs []string
	var current []string
	total := 0

	counts := make([]int, len(splits))
	for i, s := range splits {
		counts[i] = c.tokenizer.CountTokens(s)
	}

	window := make([]int, 0, len(splits))
	for i, d := range splits {
		n := counts[i]
		if total+n > c.chunkSize {
			if total > c.chunkSize {
				c.logger.Warn("chunk exceeds target size",
					zap.Int("tokens", total),
					zap.Int("target", c.chunkSize))
			}
			if len(current) > 0 {
				if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
					docs = append(docs, doc)
				}
				// Shrink the window to the overlap budget before starting
				// the next chunk.
				for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
					total -= window[0]
					window = window[1:]
					current = current[1:]
				}
			}
		}
		current = append(current, d)
		window = append(window, n)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}

	return docs
}

// splitKeepSeparator splits text by separator, keeping each separator attached
// to the front of the piece that follows it so no bytes are lost on rejoin.
// An empty separator splits into single characters.
func splitKeepSeparator(text, separator string) []string {
	var out []string

	if separator == "" {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, separator)
	for i, p := range parts {
		if i > 0 {
			p = separator + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
