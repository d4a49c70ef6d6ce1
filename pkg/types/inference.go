package types

import "time"

// CompletionReason records why a model response terminated.
type CompletionReason string

const (
	ReasonStop      CompletionReason = "stop"
	ReasonLength    CompletionReason = "length"
	ReasonTimeout   CompletionReason = "timeout"
	ReasonCancelled CompletionReason = "cancelled"
	ReasonError     CompletionReason = "error"
)

// TokenUsage carries the token accounting reported by the model backend.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// InferenceResult is the terminal outcome of a single inference call,
// including any partial text accumulated before an early termination.
type InferenceResult struct {
	Text    string           `json:"text"`
	Reason  CompletionReason `json:"reason"`
	Usage   TokenUsage       `json:"usage"`
	Retries int              `json:"retries"`
	Latency time.Duration    `json:"latency"`
}

// Partial reports whether the result carries text that was cut short.
func (r *InferenceResult) Partial() bool {
	return r.Text != "" && (r.Reason == ReasonTimeout || r.Reason == ReasonCancelled || r.Reason == ReasonError)
}
