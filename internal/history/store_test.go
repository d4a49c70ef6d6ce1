package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/advisor-ai/advisor/pkg/types"
)

func mkTurn(role types.Role, content string, tokens int) types.Turn {
	return types.Turn{Role: role, Content: content, Tokens: tokens}
}

func TestWindowFitsNewestFirst(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "oldest", 10),
		mkTurn(types.RoleAssistant, "older", 10),
		mkTurn(types.RoleUser, "newer", 10),
		mkTurn(types.RoleAssistant, "newest", 10),
	}

	got := window(turns, 25)
	// Only the two newest fit; they come back oldest first.
	assert.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Content)
	assert.Equal(t, "newest", got[1].Content)
}

func TestWindowAllFit(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "a", 5),
		mkTurn(types.RoleAssistant, "b", 5),
	}

	got := window(turns, 100)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Content)
}

func TestWindowNoneFit(t *testing.T) {
	turns := []types.Turn{mkTurn(types.RoleUser, "big", 50)}

	assert.Nil(t, window(turns, 10))
	assert.Nil(t, window(turns, 0))
	assert.Nil(t, window(nil, 100))
}

func TestWindowStopsAtFirstOversized(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "tiny", 1),
		mkTurn(types.RoleAssistant, "huge", 100),
		mkTurn(types.RoleUser, "small", 5),
	}

	// The huge middle turn blocks everything older than it.
	got := window(turns, 20)
	assert.Len(t, got, 1)
	assert.Equal(t, "small", got[0].Content)
}

func TestEvictOverBudgetDropsOldest(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "first", 10),
		mkTurn(types.RoleAssistant, "second", 10),
		mkTurn(types.RoleUser, "third", 10),
		mkTurn(types.RoleAssistant, "fourth", 10),
	}

	kept, total := evictOverBudget(turns, 25, 2)
	assert.Len(t, kept, 2)
	assert.Equal(t, "third", kept[0].Content)
	assert.Equal(t, "fourth", kept[1].Content)
	assert.Equal(t, 20, total)
}

func TestEvictOverBudgetKeepsMinimum(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "question", 300),
		mkTurn(types.RoleAssistant, "answer", 300),
	}

	// The newest pair survives even though it exceeds the budget alone.
	kept, total := evictOverBudget(turns, 100, 2)
	assert.Len(t, kept, 2)
	assert.Equal(t, 600, total)
}

func TestEvictOverBudgetDisabled(t *testing.T) {
	turns := []types.Turn{
		mkTurn(types.RoleUser, "a", 1000),
		mkTurn(types.RoleAssistant, "b", 1000),
	}

	kept, total := evictOverBudget(turns, 0, 1)
	assert.Len(t, kept, 2)
	assert.Equal(t, 2000, total)
}

func TestTurnCostEstimatesWhenMissing(t *testing.T) {
	assert.Equal(t, 7, turnCost(types.Turn{Content: "ignored", Tokens: 7}))
	assert.Equal(t, 5, turnCost(types.Turn{Content: "exactly twenty chars"}))
}
