// Package token estimates token counts for prompt budgeting.
//
// The service never sees the model's real tokenizer, so budgeting uses the
// rough four-characters-per-token heuristic common to latin-script models.
// Estimates only need to be consistent: the same text always costs the same,
// and budgets are enforced against that consistent cost.
package token

// Estimate returns the approximate token cost of text. Non-empty text always
// costs at least one token.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// EstimateAll sums the estimated cost of each text.
func EstimateAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}
