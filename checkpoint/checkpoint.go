// Package checkpoint persists the set of content hashes that have already
// been embedded and stored, making re-ingestion resumable and idempotent.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// fileFormat is the on-disk layout: a single JSON object rewritten wholesale
// on every mutation.
type fileFormat struct {
	ProcessedHashes []string `json:"processed_hashes"`
}

// Store tracks processed chunk hashes with a JSON file backing it. A hash is
// only marked after the corresponding point is durably stored in the vector
// index; callers own that ordering. Single writer assumed: two concurrent
// ingestion runs against the same file would race.
type Store struct {
	path      string
	processed map[string]struct{}
	logger    *zap.Logger
}

// NewStore loads the persisted hash set from path. A missing or corrupt file
// is not an error: the store starts fresh and logs a warning, so a damaged
// checkpoint degrades to a full re-run instead of blocking ingestion.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:      path,
		processed: make(map[string]struct{}),
		logger:    logger.With(zap.String("component", "checkpoint")),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read checkpoint, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		s.logger.Warn("failed to parse checkpoint, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	for _, h := range ff.ProcessedHashes {
		s.processed[h] = struct{}{}
	}
	s.logger.Info("loaded checkpoint",
		zap.String("path", s.path),
		zap.Int("processed", len(s.processed)))
}

// IsProcessed reports whether the chunk hash was already ingested.
func (s *Store) IsProcessed(hash string) bool {
	_, ok := s.processed[hash]
	return ok
}

// MarkProcessed records the hash and synchronously rewrites the backing file.
// Full-set rewrite per call favors durability over throughput; ingestion is a
// batch job, not a hot path.
func (s *Store) MarkProcessed(hash string) error {
	s.processed[hash] = struct{}{}
	return s.save()
}

// Len returns the number of processed hashes.
func (s *Store) Len() int {
	return len(s.processed)
}

// Clear empties the in-memory set and deletes the backing file. Used for
// non-incremental re-runs.
func (s *Store) Clear() error {
	s.processed = make(map[string]struct{})
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint %s: %w", s.path, err)
	}
	s.logger.Info("checkpoint cleared", zap.String("path", s.path))
	return nil
}

func (s *Store) save() error {
	hashes := make([]string, 0, len(s.processed))
	for h := range s.processed {
		hashes = append(hashes, h)
	}
	// Stable order keeps the file diffable between runs.
	sort.Strings(hashes)

	data, err := json.Marshal(fileFormat{ProcessedHashes: hashes})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.path, err)
	}
	return nil
}
