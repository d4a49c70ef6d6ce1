package types

// SegmentKind classifies a prompt segment by its origin.
type SegmentKind string

const (
	SegmentSystem  SegmentKind = "system"
	SegmentSnippet SegmentKind = "snippet"
	SegmentHistory SegmentKind = "history"
	SegmentUser    SegmentKind = "user"
)

// PromptSegment is one ordered piece of a composed prompt.
type PromptSegment struct {
	Kind   SegmentKind `json:"kind"`
	Role   Role        `json:"role"`
	Origin string      `json:"origin,omitempty"`
	Text   string      `json:"text"`
	Tokens int         `json:"tokens"`
}

// PromptPlan is the fully composed prompt for a single inference call.
// TotalTokens never exceeds MaxTokens.
type PromptPlan struct {
	Segments    []PromptSegment `json:"segments"`
	TotalTokens int             `json:"totalTokens"`
	MaxTokens   int             `json:"maxTokens"`
}

// Segment returns the first segment of the given kind, or nil.
func (p *PromptPlan) Segment(kind SegmentKind) *PromptSegment {
	for i := range p.Segments {
		if p.Segments[i].Kind == kind {
			return &p.Segments[i]
		}
	}
	return nil
}

// CountKind reports how many segments of the given kind the plan holds.
func (p *PromptPlan) CountKind(kind SegmentKind) int {
	n := 0
	for i := range p.Segments {
		if p.Segments[i].Kind == kind {
			n++
		}
	}
	return n
}
