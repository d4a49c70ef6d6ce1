// Package audit records terminal request outcomes as append-only JSONL,
// one file per day under a configured directory.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Record is one audit line. Response text is never written, only the
// identifiers and counters needed to reconstruct what happened.
type Record struct {
	Time            time.Time          `json:"time"`
	Outcome         string             `json:"outcome"`
	RequestID       string             `json:"requestID"`
	SessionID       string             `json:"sessionID"`
	Intent          string             `json:"intent,omitempty"`
	Reason          string             `json:"reason,omitempty"`
	UserTurnID      string             `json:"userTurnID,omitempty"`
	AssistantTurnID string             `json:"assistantTurnID,omitempty"`
	Flags           []types.FilterFlag `json:"flags,omitempty"`
	Usage           *types.TokenUsage  `json:"usage,omitempty"`
	LatencyMS       int64              `json:"latencyMS,omitempty"`
	State           string             `json:"state,omitempty"`
	Kind            string             `json:"kind,omitempty"`
	Err             string             `json:"error,omitempty"`
	Partial         bool               `json:"partial,omitempty"`
}

// Writer appends one record per terminal request event.
type Writer struct {
	dir string

	mu     sync.Mutex
	unsubs []func()

	now func() time.Time
}

// NewWriter creates the audit directory and starts consuming
// request.completed and request.failed events.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	w := &Writer{dir: dir, now: time.Now}
	w.unsubs = []func(){
		event.Subscribe(event.RequestCompleted, w.onCompleted),
		event.Subscribe(event.RequestFailed, w.onFailed),
	}
	return w, nil
}

// Close stops consuming events. Records already queued on subscriber
// goroutines may still land after Close returns.
func (w *Writer) Close() {
	for _, unsub := range w.unsubs {
		unsub()
	}
	w.unsubs = nil
}

// Path returns the file records land in for the given day.
func (w *Writer) Path(t time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("advisor-%s.jsonl", t.UTC().Format("2006-01-02")))
}

func (w *Writer) onCompleted(e event.Event) {
	data, ok := e.Data.(event.RequestCompletedData)
	if !ok || data.Response == nil {
		return
	}
	resp := data.Response
	usage := resp.Usage
	w.append(Record{
		Time:            w.now().UTC(),
		Outcome:         OutcomeCompleted,
		RequestID:       resp.RequestID,
		SessionID:       resp.SessionID,
		Intent:          string(resp.Intent),
		Reason:          string(resp.Reason),
		UserTurnID:      resp.Turns.UserTurnID,
		AssistantTurnID: resp.Turns.AssistantTurnID,
		Flags:           resp.Flags,
		Usage:           &usage,
		LatencyMS:       resp.LatencyMS,
	})
}

func (w *Writer) onFailed(e event.Event) {
	data, ok := e.Data.(event.RequestFailedData)
	if !ok {
		return
	}
	w.append(Record{
		Time:      w.now().UTC(),
		Outcome:   OutcomeFailed,
		RequestID: data.RequestID,
		SessionID: data.SessionID,
		State:     data.State,
		Kind:      data.Kind,
		Err:       data.Err,
		Partial:   data.Partial,
	})
}

func (w *Writer) append(rec Record) {
	line, err := json.Marshal(rec)
	if err != nil {
		logging.Error().Err(err).Str("requestID", rec.RequestID).Msg("failed to marshal audit record")
		return
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.Path(rec.Time), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error().Err(err).Str("requestID", rec.RequestID).Msg("failed to open audit file")
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		logging.Error().Err(err).Str("requestID", rec.RequestID).Msg("failed to write audit record")
	}
}

// ReadDay loads all records written for the given day, newest last.
// A missing file yields an empty slice.
func (w *Writer) ReadDay(t time.Time) ([]Record, error) {
	data, err := os.ReadFile(w.Path(t))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}

	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return records, fmt.Errorf("failed to decode audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
