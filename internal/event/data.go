package event

import (
	"time"

	"github.com/advisor-ai/advisor/pkg/types"
)

// RequestReceivedData is published when a request enters the pipeline.
type RequestReceivedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
}

// RequestStateData is published on every pipeline state transition.
type RequestStateData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	State     string `json:"state"`
}

// RequestRetryData is published before each inference retry attempt.
type RequestRetryData struct {
	RequestID string        `json:"requestID"`
	SessionID string        `json:"sessionID"`
	Attempt   int           `json:"attempt"`
	Wait      time.Duration `json:"wait"`
	Err       string        `json:"err"`
}

// ResponseChunkData is published for each streamed model text delta.
type ResponseChunkData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Delta     string `json:"delta"`
	Seq       int    `json:"seq"`
}

// FilterAppliedData is published when a safety rule modifies, annotates,
// or blocks a response.
type FilterAppliedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Rule      string `json:"rule"`
	Action    string `json:"action"`
}

// RequestCompletedData is published when a request reaches the completed state.
type RequestCompletedData struct {
	RequestID string          `json:"requestID"`
	SessionID string          `json:"sessionID"`
	Response  *types.Response `json:"response"`
}

// RequestFailedData is published when a request reaches the failed state.
type RequestFailedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	State     string `json:"state"`
	Kind      string `json:"kind"`
	Err       string `json:"err"`
	Partial   bool   `json:"partial"`
}

// TurnAppendedData is published when a turn is recorded in session history.
type TurnAppendedData struct {
	SessionID string     `json:"sessionID"`
	Turn      types.Turn `json:"turn"`
}

// SessionEvictedData is published when a session is dropped by TTL or
// budget pressure.
type SessionEvictedData struct {
	SessionID string `json:"sessionID"`
	Reason    string `json:"reason"`
}

// SessionClosedData is published when a client explicitly closes a session.
type SessionClosedData struct {
	SessionID string `json:"sessionID"`
}
