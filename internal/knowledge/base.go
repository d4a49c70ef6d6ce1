// Package knowledge provides the built-in financial education content and a
// keyword retriever over it. It backs the retrieval augmenter when no vector
// store is configured.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/advisor-ai/advisor/pkg/types"
)

const (
	// exactWeight scores a keyword found verbatim in the query.
	exactWeight = 1.0
	// fuzzyWeight scores a keyword matched within edit distance of a query word.
	fuzzyWeight = 0.6
)

// Base is an in-memory concept index.
type Base struct {
	concepts []Concept
	byID     map[string]int
}

// New builds a Base over the given concepts.
func New(concepts []Concept) *Base {
	b := &Base{
		concepts: concepts,
		byID:     make(map[string]int, len(concepts)),
	}
	for i := range concepts {
		b.byID[concepts[i].ID] = i
	}
	return b
}

// Default returns a Base seeded with the built-in financial concepts.
func Default() *Base {
	return New(defaultConcepts())
}

// LoadFile reads a YAML concept list and builds a Base from it.
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	var concepts []Concept
	if err := yaml.Unmarshal(data, &concepts); err != nil {
		return nil, fmt.Errorf("parse knowledge file: %w", err)
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("knowledge file %s holds no concepts", path)
	}
	for i := range concepts {
		if concepts[i].ID == "" {
			return nil, fmt.Errorf("knowledge file %s: concept %d has no id", path, i)
		}
	}
	return New(concepts), nil
}

// Concept looks a concept up by ID.
func (b *Base) Concept(id string) (Concept, bool) {
	i, ok := b.byID[strings.ToLower(id)]
	if !ok {
		return Concept{}, false
	}
	return b.concepts[i], true
}

// Len reports how many concepts the base holds.
func (b *Base) Len() int {
	return len(b.concepts)
}

// Retrieve scores every concept against the query and returns the top k as
// snippets, highest score first. It satisfies the retrieval augmenter's
// backend contract and never fails.
func (b *Base) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievedSnippet, error) {
	if k <= 0 {
		return nil, nil
	}
	queryLower := strings.ToLower(query)
	queryWords := strings.Fields(queryLower)

	var snippets []types.RetrievedSnippet
	for i := range b.concepts {
		c := &b.concepts[i]
		score := conceptScore(c, queryLower, queryWords)
		if score <= 0 {
			continue
		}
		snippets = append(snippets, types.RetrievedSnippet{
			SourceID: "kb:" + c.ID,
			Text:     c.Format(),
			Score:    score,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		if snippets[i].Score != snippets[j].Score {
			return snippets[i].Score > snippets[j].Score
		}
		return snippets[i].SourceID < snippets[j].SourceID
	})
	if len(snippets) > k {
		snippets = snippets[:k]
	}
	return snippets, nil
}

// conceptScore rates how well a concept's keywords match the query.
// An exact substring hit outweighs a fuzzy hit; among hits of the same kind,
// concepts whose keyword lists match more completely score higher.
func conceptScore(c *Concept, queryLower string, queryWords []string) float64 {
	if len(c.Keywords) == 0 {
		return 0
	}
	matched := 0
	weight := 0.0
	for _, kw := range c.Keywords {
		if strings.Contains(queryLower, kw) {
			matched++
			weight = exactWeight
			continue
		}
		if fuzzyMatch(kw, queryWords) {
			matched++
			if weight < fuzzyWeight {
				weight = fuzzyWeight
			}
		}
	}
	if matched == 0 {
		return 0
	}
	score := weight * float64(matched) / float64(len(c.Keywords))
	if score > 1 {
		score = 1
	}
	return score
}

// fuzzyMatch reports whether any query word sits within a small edit
// distance of the keyword. Short keywords only tolerate distance one;
// eight characters and up tolerate two.
func fuzzyMatch(keyword string, queryWords []string) bool {
	if len(keyword) < 4 {
		return false
	}
	limit := 1
	if len(keyword) >= 8 {
		limit = 2
	}
	for _, w := range queryWords {
		if levenshtein.ComputeDistance(keyword, w) <= limit {
			return true
		}
	}
	return false
}

// Format renders the concept the way prompt composition expects reference
// material: a definition followed by labeled sections.
func (c *Concept) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", c.Title)
	fmt.Fprintf(&b, "Definition: %s\n", c.Definition)

	if len(c.KeyPoints) > 0 {
		b.WriteString("\nKey Points:\n")
		for _, p := range c.KeyPoints {
			fmt.Fprintf(&b, "• %s\n", p)
		}
	}
	if c.Example != "" {
		fmt.Fprintf(&b, "\nExample: %s\n", c.Example)
	}
	if c.Formula != "" {
		fmt.Fprintf(&b, "\nFormula: %s\n", c.Formula)
	}
	if len(c.Types) > 0 {
		b.WriteString("\nTypes:\n")
		for _, t := range c.Types {
			fmt.Fprintf(&b, "• %s\n", t)
		}
	}
	if len(c.Related) > 0 {
		fmt.Fprintf(&b, "\nRelated Concepts: %s\n", strings.Join(c.Related, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
