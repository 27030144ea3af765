package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/adverant/nexus/manualqa/internal/generation"
	"github.com/adverant/nexus/manualqa/internal/logging"
)

// expandQueries asks the generative model for exactly 2 reformulations of
// the enriched query, per spec §4.7 step 2. The first 2 non-empty reply
// lines, with leading numbering, bullets and spaces stripped, are taken as
// the reformulations whatever their content. A generation failure or a reply
// with no non-empty lines degrades to retrieval on the primary query alone,
// rather than failing the whole request over an optional enrichment step.
func expandQueries(ctx context.Context, gen *generation.Client, enrichedQuery string, logger *logging.Logger) []string {
	queries := []string{enrichedQuery}

	if gen == nil {
		return queries
	}

	text, _, err := gen.Generate(ctx, "", fmt.Sprintf(expansionInstruction, enrichedQuery))
	if err != nil {
		logger.Warn("query expansion failed, continuing with primary query only", "error", err)
		return queries
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) >= 3 {
			break
		}
	}
	return queries
}
