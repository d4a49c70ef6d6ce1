package types

import "time"

// SessionInfo summarizes the stored state of a conversation session.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	TurnCount    int       `json:"turnCount"`
	TokenCount   int       `json:"tokenCount"`
}
