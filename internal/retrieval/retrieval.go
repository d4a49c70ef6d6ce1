// Package retrieval augments prompts with reference material relevant to
// the current user message. Retrieval is strictly best-effort: the pipeline
// proceeds without snippets whenever a backend is slow or unavailable.
package retrieval

import (
	"context"
	"sort"

	"github.com/advisor-ai/advisor/pkg/types"
)

// Retriever finds reference snippets for a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]types.RetrievedSnippet, error)
}

// Rank normalizes retriever output: scores clamped to [0, 1], descending
// score order with sourceID as tiebreak, ranks assigned from 1.
func Rank(snippets []types.RetrievedSnippet) []types.RetrievedSnippet {
	out := append([]types.RetrievedSnippet(nil), snippets...)
	for i := range out {
		if out[i].Score < 0 {
			out[i].Score = 0
		}
		if out[i].Score > 1 {
			out[i].Score = 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SourceID < out[j].SourceID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
