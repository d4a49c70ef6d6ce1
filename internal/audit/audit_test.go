package audit

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/pkg/types"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	event.Reset()
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestWriterRecordsCompletedRequest(t *testing.T) {
	w := newTestWriter(t)

	event.PublishSync(event.Event{
		Type: event.RequestCompleted,
		Data: event.RequestCompletedData{
			RequestID: "req-1",
			SessionID: "sess-1",
			Response: &types.Response{
				RequestID:  "req-1",
				SessionID:  "sess-1",
				Text:       "Index funds spread risk across many holdings.",
				Intent:     types.IntentQuestionAnswering,
				Confidence: 0.5,
				Flags:      []types.FilterFlag{{Rule: "advice-disclaimer", Action: "annotate"}},
				Reason:     types.ReasonStop,
				Usage:      types.TokenUsage{Prompt: 120, Completion: 45},
				Turns:      types.TurnRef{UserTurnID: "turn-u", AssistantTurnID: "turn-a"},
				LatencyMS:  340,
			},
		},
	})

	records, err := w.ReadDay(time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, OutcomeCompleted, rec.Outcome)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "question_answering", rec.Intent)
	assert.Equal(t, "stop", rec.Reason)
	assert.Equal(t, "turn-u", rec.UserTurnID)
	assert.Equal(t, "turn-a", rec.AssistantTurnID)
	require.Len(t, rec.Flags, 1)
	assert.Equal(t, "advice-disclaimer", rec.Flags[0].Rule)
	require.NotNil(t, rec.Usage)
	assert.Equal(t, 120, rec.Usage.Prompt)
	assert.Equal(t, int64(340), rec.LatencyMS)
	assert.False(t, rec.Time.IsZero())
}

func TestWriterRecordsFailedRequest(t *testing.T) {
	w := newTestWriter(t)

	event.PublishSync(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{
			RequestID: "req-2",
			SessionID: "sess-1",
			State:     "inferring",
			Kind:      "transport",
			Err:       "model stream failed after 3 attempts",
			Partial:   true,
		},
	})

	records, err := w.ReadDay(time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, OutcomeFailed, rec.Outcome)
	assert.Equal(t, "req-2", rec.RequestID)
	assert.Equal(t, "inferring", rec.State)
	assert.Equal(t, "transport", rec.Kind)
	assert.Equal(t, "model stream failed after 3 attempts", rec.Err)
	assert.True(t, rec.Partial)
	assert.Empty(t, rec.Intent)
	assert.Nil(t, rec.Usage)
}

func TestWriterNeverStoresResponseText(t *testing.T) {
	w := newTestWriter(t)

	blockedText := "This fund offers guaranteed returns every single year."
	event.PublishSync(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{
			RequestID: "req-3",
			SessionID: "sess-1",
			State:     "inferring",
			Kind:      "policy",
			Err:       `response blocked by safety rule "guaranteed-returns"`,
		},
	})

	raw, err := os.ReadFile(w.Path(time.Now()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), blockedText)
	assert.Contains(t, string(raw), "guaranteed-returns")
}

func TestWriterAppendsAcrossRequests(t *testing.T) {
	w := newTestWriter(t)

	for i := 0; i < 3; i++ {
		event.PublishSync(event.Event{
			Type: event.RequestFailed,
			Data: event.RequestFailedData{RequestID: "req", SessionID: "sess", State: "received", Kind: "validation", Err: "message is empty"},
		})
	}

	records, err := w.ReadDay(time.Now())
	require.NoError(t, err)
	assert.Len(t, records, 3)

	raw, err := os.ReadFile(w.Path(time.Now()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	assert.Len(t, lines, 3)
}

func TestWriterSplitsFilesByDay(t *testing.T) {
	w := newTestWriter(t)

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	w.now = func() time.Time { return day1 }
	event.PublishSync(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{RequestID: "req-a", SessionID: "sess", State: "received", Kind: "validation", Err: "message is empty"},
	})

	w.now = func() time.Time { return day2 }
	event.PublishSync(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{RequestID: "req-b", SessionID: "sess", State: "received", Kind: "validation", Err: "message is empty"},
	})

	first, err := w.ReadDay(day1)
	require.NoError(t, err)
	second, err := w.ReadDay(day2)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "req-a", first[0].RequestID)
	assert.Equal(t, "req-b", second[0].RequestID)
	assert.NotEqual(t, w.Path(day1), w.Path(day2))
}

func TestReadDayMissingFile(t *testing.T) {
	w := newTestWriter(t)

	records, err := w.ReadDay(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriterCloseStopsRecording(t *testing.T) {
	w := newTestWriter(t)
	w.Close()

	event.PublishSync(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{RequestID: "req-late", SessionID: "sess", State: "received", Kind: "validation", Err: "message is empty"},
	})

	records, err := w.ReadDay(time.Now())
	require.NoError(t, err)
	assert.Empty(t, records)
}
