package types

// FilterFlag records a safety filter that modified or annotated a response.
type FilterFlag struct {
	Rule   string `json:"rule"`
	Action string `json:"action"`
}

// Response is the structured answer returned for one conversational request.
type Response struct {
	RequestID  string           `json:"requestID"`
	SessionID  string           `json:"sessionID"`
	Text       string           `json:"text"`
	Intent     Intent           `json:"intent"`
	Confidence float64          `json:"confidence"`
	Blocked    bool             `json:"blocked,omitempty"`
	Flags      []FilterFlag     `json:"flags,omitempty"`
	Reason     CompletionReason `json:"reason"`
	Usage      TokenUsage       `json:"usage"`
	Turns      TurnRef          `json:"turns"`
	LatencyMS  int64            `json:"latencyMS"`
}
