package types

// RetrievedSnippet is a unit of reference material returned by a retriever,
// scored by relevance to the current user message.
type RetrievedSnippet struct {
	SourceID string  `json:"sourceID"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}
