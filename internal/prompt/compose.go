// Package prompt assembles system instructions, retrieved snippets, and
// conversation history into a token-budgeted plan for the inference driver.
// Composition is deterministic and pure: the same inputs always produce the
// same plan.
package prompt

import (
	"fmt"

	"github.com/advisor-ai/advisor/internal/token"
	"github.com/advisor-ai/advisor/pkg/types"
)

// PromptTooLargeError reports that the mandatory segments (system
// instructions plus the current user message) exceed the token budget on
// their own. Nothing can be dropped to make such a prompt fit.
type PromptTooLargeError struct {
	Required int
	Budget   int
}

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("mandatory prompt segments require %d tokens, budget is %d", e.Required, e.Budget)
}

// Composer builds prompt plans.
type Composer struct{}

// NewComposer returns a Composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds a PromptPlan within maxTokens.
//
// The system instructions and the current user message are mandatory and
// never dropped; if they alone exceed the budget, Compose fails with
// PromptTooLargeError. Snippets are added in the order given (callers pass
// them best-first) and adding stops at the first snippet that would
// overflow; a snippet is never partially included. History turns then fill
// the remaining budget newest-first, so the oldest turns fall away first,
// but appear in the plan in conversation order.
func (c *Composer) Compose(instructions string, snippets []types.RetrievedSnippet, history []types.Turn, userMessage string, maxTokens int) (*types.PromptPlan, error) {
	systemSeg := types.PromptSegment{
		Kind:   types.SegmentSystem,
		Role:   types.RoleSystem,
		Text:   instructions,
		Tokens: token.Estimate(instructions),
	}
	userSeg := types.PromptSegment{
		Kind:   types.SegmentUser,
		Role:   types.RoleUser,
		Text:   userMessage,
		Tokens: token.Estimate(userMessage),
	}

	total := systemSeg.Tokens + userSeg.Tokens
	if total > maxTokens {
		return nil, &PromptTooLargeError{Required: total, Budget: maxTokens}
	}

	var snippetSegs []types.PromptSegment
	for _, s := range snippets {
		text := snippetText(s)
		cost := token.Estimate(text)
		if total+cost > maxTokens {
			break
		}
		snippetSegs = append(snippetSegs, types.PromptSegment{
			Kind:   types.SegmentSnippet,
			Role:   types.RoleSystem,
			Origin: s.SourceID,
			Text:   text,
			Tokens: cost,
		})
		total += cost
	}

	// Newest turns claim the budget first; the slice is then emitted in
	// conversation order.
	var historySegs []types.PromptSegment
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		cost := t.Tokens
		if cost <= 0 {
			cost = token.Estimate(t.Content)
		}
		if total+cost > maxTokens {
			break
		}
		historySegs = append(historySegs, types.PromptSegment{
			Kind:   types.SegmentHistory,
			Role:   t.Role,
			Origin: t.ID,
			Text:   t.Content,
			Tokens: cost,
		})
		total += cost
	}
	reverse(historySegs)

	segments := make([]types.PromptSegment, 0, 2+len(snippetSegs)+len(historySegs))
	if systemSeg.Text != "" {
		segments = append(segments, systemSeg)
	}
	segments = append(segments, snippetSegs...)
	segments = append(segments, historySegs...)
	segments = append(segments, userSeg)

	return &types.PromptPlan{
		Segments:    segments,
		TotalTokens: total,
		MaxTokens:   maxTokens,
	}, nil
}

// snippetText renders a snippet for the model, tagged with its source.
func snippetText(s types.RetrievedSnippet) string {
	if s.SourceID == "" {
		return s.Text
	}
	return "[" + s.SourceID + "] " + s.Text
}

func reverse(segs []types.PromptSegment) {
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
}
