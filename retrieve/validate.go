package retrieve

import (
	"context"

	"go.uber.org/zap"
)

// DefaultValidationQueries are the canned queries used when the caller does
// not supply its own sweep.
var DefaultValidationQueries = []string{
	"What is ROS2?",
	"Explain simulation in Gazebo",
	"How do I use Isaac Sim?",
	"What is reinforcement learning?",
}

// QueryValidation pairs one validation query's response with its metadata
// completeness report.
type QueryValidation struct {
	Response *Response      `json:"response"`
	Metadata MetadataReport `json:"metadata_report"`
}

// RunValidation runs a sweep of validation queries through the full search
// pipeline and reports metadata completeness per query. Individual query
// failures surface as status="error" responses inside the sweep, never as a
// returned error.
func (s *Searcher) RunValidation(ctx context.Context, queries []string, topK int) ([]QueryValidation, error) {
	if len(queries) == 0 {
		queries = DefaultValidationQueries
	}
	if topK < 1 || topK > 100 {
		topK = 5
	}

	s.logger.Info("running retrieval validation",
		zap.Int("queries", len(queries)),
		zap.Int("top_k", topK))

	out := make([]QueryValidation, 0, len(queries))
	for _, query := range queries {
		resp, err := s.Search(ctx, query, topK, 0.0)
		if err != nil {
			// Only reachable via bad topK/threshold, which are fixed above.
			return nil, err
		}

		if resp.Status == "success" {
			s.logger.Info("validation query done",
				zap.String("query", query),
				zap.Int("results", resp.TotalResults))
		} else {
			s.logger.Error("validation query failed",
				zap.String("query", query),
				zap.String("error", resp.Error.Message))
		}

		out = append(out, QueryValidation{
			Response: resp,
			Metadata: ValidateMetadata(resp.Results),
		})
	}

	return out, nil
}
