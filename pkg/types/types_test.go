package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIntent(t *testing.T) {
	assert.True(t, ValidIntent("profile_analysis"))
	assert.True(t, ValidIntent("portfolio_creation"))
	assert.True(t, ValidIntent("market_research"))
	assert.True(t, ValidIntent("question_answering"))
	assert.False(t, ValidIntent("stock_tips"))
	assert.False(t, ValidIntent(""))
}

func TestPromptPlanSegment(t *testing.T) {
	plan := &PromptPlan{
		Segments: []PromptSegment{
			{Kind: SegmentSystem, Role: RoleSystem, Text: "instructions"},
			{Kind: SegmentSnippet, Role: RoleSystem, Origin: "kb:etf", Text: "etf"},
			{Kind: SegmentSnippet, Role: RoleSystem, Origin: "kb:bond", Text: "bond"},
			{Kind: SegmentUser, Role: RoleUser, Text: "question"},
		},
	}

	sys := plan.Segment(SegmentSystem)
	assert.NotNil(t, sys)
	assert.Equal(t, "instructions", sys.Text)

	assert.Nil(t, plan.Segment(SegmentHistory))
	assert.Equal(t, 2, plan.CountKind(SegmentSnippet))
	assert.Equal(t, 1, plan.CountKind(SegmentUser))
}

func TestInferenceResultPartial(t *testing.T) {
	assert.False(t, (&InferenceResult{Text: "done", Reason: ReasonStop}).Partial())
	assert.False(t, (&InferenceResult{Text: "", Reason: ReasonTimeout}).Partial())
	assert.True(t, (&InferenceResult{Text: "Diversif", Reason: ReasonTimeout}).Partial())
	assert.True(t, (&InferenceResult{Text: "half an answer", Reason: ReasonCancelled}).Partial())
}
