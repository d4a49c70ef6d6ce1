// Package types provides the core data types for the advisor service.
package types

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in a session's conversation history.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"createdAt"`
}

// TurnRef points at the pair of turns a completed request appended.
type TurnRef struct {
	UserTurnID      string `json:"userTurnID,omitempty"`
	AssistantTurnID string `json:"assistantTurnID,omitempty"`
}
