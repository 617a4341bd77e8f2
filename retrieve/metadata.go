package retrieve

import "fmt"

// requiredMetadataFields are checked by ValidateMetadata on every result.
var requiredMetadataFields = []string{"source_url", "page_title", "section_headers", "chunk_index"}

// MetadataReport summarizes metadata completeness across a result list.
type MetadataReport struct {
	TotalResults   int      `json:"total_results"`
	ValidResults   int      `json:"valid_results"`
	InvalidResults int      `json:"invalid_results"`
	Issues         []string `json:"issues"`
}

// ValidateMetadata reports how many results carry complete provenance
// metadata and which field is missing or empty per offending result. This is
// a quality check, not a gate: incomplete results are still returned by
// Search.
func ValidateMetadata(results []Result) MetadataReport {
	report := MetadataReport{
		TotalResults: len(results),
		Issues:       []string{},
	}

	for idx, result := range results {
		ok := true
		for _, field := range requiredMetadataFields {
			if !metadataFieldPresent(result.Metadata, field) {
				report.Issues = append(report.Issues, fmt.Sprintf("result %d: empty %s", idx, field))
				ok = false
			}
		}
		if ok {
			report.ValidResults++
		} else {
			report.InvalidResults++
		}
	}

	return report
}

func metadataFieldPresent(m ResultMetadata, field string) bool {
	switch field {
	case "source_url":
		return m.SourceURL != ""
	case "page_title":
		return m.PageTitle != ""
	case "section_headers":
		return len(m.SectionHeaders) > 0
	case "chunk_index":
		// 0 is a valid index; only a nil pointer counts as missing.
		return m.ChunkIndex != nil
	default:
		return false
	}
}
