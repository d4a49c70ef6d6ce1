// Package history stores per-session conversation turns and enforces the
// history token budget.
package history

import (
	"context"
	"errors"

	"github.com/advisor-ai/advisor/internal/token"
	"github.com/advisor-ai/advisor/pkg/types"
)

// ErrNotFound is returned when a session has no stored state.
var ErrNotFound = errors.New("session not found")

// Store persists conversation turns per session.
//
// Append enforces the history token budget by evicting the oldest turns
// first. The turns of the append itself are never evicted: when they alone
// exceed the budget, every older turn is dropped and the new turns are
// retained over budget, since a response's own turn pair must survive the
// write that records it. History's read-side window still never returns
// more than its maxTokens. History never errors for unknown sessions: a
// session's first request simply sees an empty history.
type Store interface {
	// Append records turns for a session in one atomic write.
	Append(ctx context.Context, sessionID string, turns ...types.Turn) error

	// History returns the newest stored turns whose token costs fit
	// maxTokens, ordered oldest first. Unknown sessions yield an empty
	// history and no error.
	History(ctx context.Context, sessionID string, maxTokens int) ([]types.Turn, error)

	// Turns returns every retained turn, ordered oldest first.
	// Returns ErrNotFound for unknown sessions.
	Turns(ctx context.Context, sessionID string) ([]types.Turn, error)

	// Info summarizes a session. Returns ErrNotFound for unknown sessions.
	Info(ctx context.Context, sessionID string) (*types.SessionInfo, error)

	// Evict drops a session and its turns. Returns ErrNotFound when the
	// session does not exist.
	Evict(ctx context.Context, sessionID string) error

	// Close releases store resources.
	Close() error
}

// turnCost returns the budgeted token cost of a turn, estimating it when the
// stored value is missing.
func turnCost(t types.Turn) int {
	if t.Tokens > 0 {
		return t.Tokens
	}
	return token.Estimate(t.Content)
}

// window returns a copy of the longest suffix of turns whose summed cost
// fits maxTokens, preserving oldest-first order.
func window(turns []types.Turn, maxTokens int) []types.Turn {
	if maxTokens <= 0 {
		return nil
	}
	total := 0
	i := len(turns)
	for i > 0 {
		cost := turnCost(turns[i-1])
		if total+cost > maxTokens {
			break
		}
		total += cost
		i--
	}
	if i == len(turns) {
		return nil
	}
	return append([]types.Turn(nil), turns[i:]...)
}

// evictOverBudget drops the oldest turns until the total cost fits budget,
// always retaining at least keep turns at the tail. It returns the surviving
// turns and their total cost.
func evictOverBudget(turns []types.Turn, budget, keep int) ([]types.Turn, int) {
	total := 0
	for _, t := range turns {
		total += turnCost(t)
	}
	if budget <= 0 {
		return turns, total
	}
	for total > budget && len(turns) > keep {
		total -= turnCost(turns[0])
		turns = turns[1:]
	}
	return turns, total
}
