package vectordb

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// PointID derives a deterministic UUID from the chunk's source URL and text:
// the first 16 bytes of sha256("{url}:{text}") formatted as a UUID. Re-running
// ingestion on unchanged content therefore produces the same ID and upserts
// overwrite instead of duplicating.
func PointID(text, sourceURL string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", sourceURL, text)))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// Unreachable: FromBytes only fails on length mismatch.
		panic(err)
	}
	return id.String()
}
