package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/pkg/types"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 1000})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1",
		mkTurn(types.RoleUser, "what is an ETF?", 10),
		mkTurn(types.RoleAssistant, "an exchange traded fund", 12),
	))

	turns, err := s.History(ctx, "sess-1", 1000)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, "what is an ETF?", turns[0].Content)
}

func TestMemoryStoreUnknownSessionHistoryIsEmpty(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()

	turns, err := s.History(context.Background(), "never-seen", 500)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStoreUnknownSessionTurnsNotFound(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()

	_, err := s.Turns(context.Background(), "never-seen")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Info(context.Background(), "never-seen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreBudgetEviction(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 50})
	defer s.Close()
	ctx := context.Background()

	// Fill five pairs of 10 tokens each, 20 per pair.
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "sess-1",
			mkTurn(types.RoleUser, fmt.Sprintf("question %d", i), 10),
			mkTurn(types.RoleAssistant, fmt.Sprintf("answer %d", i), 10),
		))
	}

	turns, err := s.Turns(ctx, "sess-1")
	require.NoError(t, err)

	// 50 token budget keeps at most two full pairs plus one stray turn.
	require.Len(t, turns, 5)
	assert.Equal(t, "answer 2", turns[0].Content)
	assert.Equal(t, "question 3", turns[1].Content)
	assert.Equal(t, "answer 4", turns[4].Content)

	info, err := s.Info(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 50, info.TokenCount)
	assert.Equal(t, 5, info.TurnCount)
}

func TestMemoryStoreNewPairSurvivesTinyBudget(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 5})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1",
		mkTurn(types.RoleUser, "long question", 100),
		mkTurn(types.RoleAssistant, "long answer", 100),
	))

	turns, err := s.Turns(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestMemoryStoreOversizedPairFlushesOlderTurns(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 300})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1",
		mkTurn(types.RoleUser, "first question", 100),
		mkTurn(types.RoleAssistant, "first answer", 100),
	))
	require.NoError(t, s.Append(ctx, "sess-1",
		mkTurn(types.RoleUser, "huge question", 200),
		mkTurn(types.RoleAssistant, "huge answer", 200),
	))

	// The oversized pair is the only retention allowed past the budget;
	// everything older went with the overflow.
	turns, err := s.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "huge question", turns[0].Content)

	// The read-side window still honors its own budget: only the newest
	// turn fits 300 tokens.
	hist, err := s.History(ctx, "sess-1", 300)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "huge answer", hist[0].Content)

	hist, err = s.History(ctx, "sess-1", 400)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestMemoryStoreHistoryWindow(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 0})
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Append(ctx, "sess-1",
			mkTurn(types.RoleUser, fmt.Sprintf("q%d", i), 10),
			mkTurn(types.RoleAssistant, fmt.Sprintf("a%d", i), 10),
		))
	}

	// Only the newest three turns fit 30 tokens.
	turns, err := s.History(ctx, "sess-1", 30)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "a2", turns[0].Content)
	assert.Equal(t, "q3", turns[1].Content)
	assert.Equal(t, "a3", turns[2].Content)
}

func TestMemoryStoreEstimatesMissingTokens(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1",
		types.Turn{Role: types.RoleUser, Content: "twelve chars"},
	))

	turns, err := s.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, 3, turns[0].Tokens)
	assert.False(t, turns[0].CreatedAt.IsZero())
}

func TestMemoryStoreEvict(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1", mkTurn(types.RoleUser, "hi", 1)))
	require.NoError(t, s.Evict(ctx, "sess-1"))

	_, err := s.Turns(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Evict(ctx, "sess-1"), ErrNotFound)
}

func TestMemoryStoreIdleExpiry(t *testing.T) {
	defer event.Reset()

	evicted := make(chan event.SessionEvictedData, 1)
	unsub := event.Subscribe(event.SessionEvicted, func(e event.Event) {
		if data, ok := e.Data.(event.SessionEvictedData); ok {
			select {
			case evicted <- data:
			default:
			}
		}
	})
	defer unsub()

	s := NewMemoryStore(MemoryOptions{
		IdleTTL:       30 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-idle", mkTurn(types.RoleUser, "hi", 1)))

	select {
	case data := <-evicted:
		assert.Equal(t, "sess-idle", data.SessionID)
		assert.Equal(t, "idle", data.Reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for idle eviction")
	}

	_, err := s.Turns(ctx, "sess-idle")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAccessKeepsSessionAlive(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{
		IdleTTL:       60 * time.Millisecond,
		SweepInterval: 20 * time.Millisecond,
	})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-busy", mkTurn(types.RoleUser, "hi", 1)))

	// Keep touching the session past several sweep intervals.
	for i := 0; i < 6; i++ {
		time.Sleep(25 * time.Millisecond)
		_, err := s.History(ctx, "sess-busy", 100)
		require.NoError(t, err)
	}

	_, err := s.Turns(ctx, "sess-busy")
	assert.NoError(t, err)
}

func TestMemoryStoreConcurrentSessions(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{HistoryTokenBudget: 10000})
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n)
			for j := 0; j < 20; j++ {
				_ = s.Append(ctx, id,
					mkTurn(types.RoleUser, fmt.Sprintf("q%d", j), 2),
					mkTurn(types.RoleAssistant, fmt.Sprintf("a%d", j), 2),
				)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		turns, err := s.Turns(ctx, fmt.Sprintf("sess-%d", i))
		require.NoError(t, err)
		assert.Len(t, turns, 40)
	}
}
