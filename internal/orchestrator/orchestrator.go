// Package orchestrator drives a conversational request through the
// advisory pipeline: normalize, load context, classify intent,
// retrieve, compose, infer, validate, persist. Requests for the same
// session are serialized; distinct sessions run in parallel.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/inference"
	"github.com/advisor-ai/advisor/internal/intent"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/internal/normalize"
	"github.com/advisor-ai/advisor/internal/prompt"
	"github.com/advisor-ai/advisor/internal/retrieval"
	"github.com/advisor-ai/advisor/internal/safety"
	"github.com/advisor-ai/advisor/internal/token"
	"github.com/advisor-ai/advisor/pkg/types"
)

// Pipeline states. One request.state event is published per
// transition; failed is terminal and reachable from any of them.
const (
	StateReceived      = "received"
	StateNormalized    = "normalized"
	StateContextLoaded = "context_loaded"
	StateRetrieving    = "retrieving"
	StateComposed      = "composed"
	StateInferring     = "inferring"
	StateValidated     = "validated"
	StateCompleted     = "completed"
	StateFailed        = "failed"
)

// Failure kinds carried on request.failed events.
const (
	FailValidation     = "validation"
	FailPromptTooLarge = "prompt_too_large"
	FailHistory        = "history"
	FailPolicy         = "policy"
	FailTransport      = "transport"
	FailTimeout        = "timeout"
	FailCancelled      = "cancelled"
	FailAppend         = "append"
	FailInternal       = "internal"
)

// ChunkFunc receives streamed text deltas in generation order, before
// validation has run.
type ChunkFunc func(delta string, seq int)

// Config bounds the pipeline.
type Config struct {
	MaxContextTokens   int
	HistoryTokenBudget int
	RetrievalK         int
	InferenceTimeout   time.Duration
}

// Engine runs the request pipeline.
type Engine struct {
	mu     sync.Mutex
	active map[string]*requestState

	cfg        Config
	normalizer *normalize.Normalizer
	store      history.Store
	retriever  retrieval.Retriever
	classifier *intent.Classifier
	composer   *prompt.Composer
	driver     *inference.Driver
	chain      *safety.Chain
}

// requestState tracks the in-flight request holding a session.
type requestState struct {
	requestID string
	ctx       context.Context
	cancel    context.CancelFunc
	waiters   []chan struct{}
}

// New wires the pipeline. A nil retriever disables the retrieval
// stage; a nil classifier routes everything to question answering.
func New(
	cfg Config,
	normalizer *normalize.Normalizer,
	store history.Store,
	retriever retrieval.Retriever,
	classifier *intent.Classifier,
	composer *prompt.Composer,
	driver *inference.Driver,
	chain *safety.Chain,
) *Engine {
	return &Engine{
		active:     make(map[string]*requestState),
		cfg:        cfg,
		normalizer: normalizer,
		store:      store,
		retriever:  retriever,
		classifier: classifier,
		composer:   composer,
		driver:     driver,
		chain:      chain,
	}
}

// Converse runs one user message through the pipeline and returns the
// validated response. onChunk, when non-nil, is called inline with
// each streamed delta. The error taxonomy: normalize.ValidationError,
// prompt.PromptTooLargeError, inference.TransportError,
// inference.TimeoutError, safety.PolicyViolationError, or a context
// error when the caller went away.
func (e *Engine) Converse(ctx context.Context, sessionID, message string, onChunk ChunkFunc) (*types.Response, error) {
	requestID := ulid.Make().String()
	start := time.Now()

	event.Publish(event.Event{
		Type: event.RequestReceived,
		Data: event.RequestReceivedData{RequestID: requestID, SessionID: sessionID},
	})
	e.setState(requestID, sessionID, StateReceived)

	if sessionID == "" {
		err := &normalize.ValidationError{Reason: "sessionId is required"}
		e.fail(requestID, sessionID, StateReceived, FailValidation, err, false)
		return nil, err
	}

	normalized, err := e.normalizer.Normalize(message)
	if err != nil {
		e.fail(requestID, sessionID, StateReceived, FailValidation, err, false)
		return nil, err
	}
	e.setState(requestID, sessionID, StateNormalized)

	// Serialize on the session before any history read so concurrent
	// requests cannot interleave the read/append pair.
	st, err := e.acquire(ctx, sessionID, requestID)
	if err != nil {
		e.fail(requestID, sessionID, StateNormalized, FailCancelled, err, false)
		return nil, err
	}
	defer e.release(sessionID, st)

	return e.run(st.ctx, requestID, sessionID, normalized, start, onChunk)
}

func (e *Engine) run(ctx context.Context, requestID, sessionID, message string, start time.Time, onChunk ChunkFunc) (*types.Response, error) {
	step := StateNormalized
	advance := func(s string) {
		step = s
		e.setState(requestID, sessionID, s)
	}

	turns, err := e.store.History(ctx, sessionID, e.cfg.HistoryTokenBudget)
	if err != nil {
		e.fail(requestID, sessionID, step, FailHistory, err, false)
		return nil, err
	}
	advance(StateContextLoaded)

	intentName, confidence := e.classifier.Classify(ctx, message)

	var snippets []types.RetrievedSnippet
	if e.retriever != nil {
		advance(StateRetrieving)
		snippets, _ = e.retriever.Retrieve(ctx, message, e.cfg.RetrievalK)
	}

	plan, err := e.composer.Compose(prompt.Instructions(intentName), snippets, turns, message, e.cfg.MaxContextTokens)
	if err != nil {
		e.fail(requestID, sessionID, step, FailPromptTooLarge, err, false)
		return nil, err
	}
	advance(StateComposed)

	advance(StateInferring)
	stream, err := e.driver.Infer(ctx, plan, inference.Options{RequestID: requestID, SessionID: sessionID})
	if err != nil {
		e.fail(requestID, sessionID, step, failKind(err), err, false)
		return nil, err
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			break
		}
		if onChunk != nil {
			onChunk(chunk.Text, chunk.Seq)
		}
	}
	res := stream.Result()

	// Nothing produced: fail instead of storing an empty exchange. A
	// stream that closed cleanly without content counts the same as one
	// that was cut off before emitting anything.
	if res.Text == "" {
		err := e.emptyResultError(ctx, res)
		e.fail(requestID, sessionID, step, failKind(err), err, false)
		return nil, err
	}

	text, flags, err := e.chain.Validate(res, safety.Options{RequestID: requestID, SessionID: sessionID})
	if err != nil {
		e.fail(requestID, sessionID, step, FailPolicy, err, res.Partial())
		return nil, err
	}
	advance(StateValidated)

	now := time.Now()
	userTurn := types.Turn{
		ID:        ulid.Make().String(),
		Role:      types.RoleUser,
		Content:   message,
		Tokens:    token.Estimate(message),
		CreatedAt: now,
	}
	assistantTurn := types.Turn{
		ID:        ulid.Make().String(),
		Role:      types.RoleAssistant,
		Content:   text,
		Tokens:    token.Estimate(text),
		CreatedAt: now,
	}

	// Persist even when the caller has disconnected; a partial answer
	// is still part of the session record.
	if err := e.store.Append(context.WithoutCancel(ctx), sessionID, userTurn, assistantTurn); err != nil {
		e.fail(requestID, sessionID, step, FailAppend, err, res.Partial())
		return nil, err
	}
	for _, turn := range []types.Turn{userTurn, assistantTurn} {
		event.Publish(event.Event{
			Type: event.TurnAppended,
			Data: event.TurnAppendedData{SessionID: sessionID, Turn: turn},
		})
	}

	resp := &types.Response{
		RequestID:  requestID,
		SessionID:  sessionID,
		Text:       text,
		Intent:     intentName,
		Confidence: confidence,
		Flags:      flags,
		Reason:     res.Reason,
		Usage:      res.Usage,
		Turns:      types.TurnRef{UserTurnID: userTurn.ID, AssistantTurnID: assistantTurn.ID},
		LatencyMS:  time.Since(start).Milliseconds(),
	}

	advance(StateCompleted)
	event.Publish(event.Event{
		Type: event.RequestCompleted,
		Data: event.RequestCompletedData{RequestID: requestID, SessionID: sessionID, Response: resp},
	})
	logging.Info().
		Str("requestID", requestID).
		Str("sessionID", sessionID).
		Str("intent", string(intentName)).
		Str("reason", string(res.Reason)).
		Int("retries", res.Retries).
		Int64("latencyMS", resp.LatencyMS).
		Msg("request completed")

	return resp, nil
}

// acquire takes the session slot, queueing behind the in-flight
// request if there is one. It returns once this request holds the
// session or ctx is done.
func (e *Engine) acquire(ctx context.Context, sessionID, requestID string) (*requestState, error) {
	for {
		e.mu.Lock()
		cur, busy := e.active[sessionID]
		if !busy {
			rctx, cancel := context.WithCancel(ctx)
			st := &requestState{requestID: requestID, ctx: rctx, cancel: cancel}
			e.active[sessionID] = st
			e.mu.Unlock()
			return st, nil
		}
		waiter := make(chan struct{})
		cur.waiters = append(cur.waiters, waiter)
		e.mu.Unlock()

		select {
		case <-waiter:
			// Holder finished; race the other waiters for the slot.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// release frees the session slot and wakes every queued waiter.
func (e *Engine) release(sessionID string, st *requestState) {
	st.cancel()

	e.mu.Lock()
	delete(e.active, sessionID)
	waiters := st.waiters
	st.waiters = nil
	e.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Abort cancels the in-flight request for a session, if any. The
// aborted request finishes through its normal cancellation path.
func (e *Engine) Abort(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.active[sessionID]
	if !ok {
		return false
	}
	st.cancel()
	return true
}

// IsProcessing reports whether a session has an in-flight request.
func (e *Engine) IsProcessing(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[sessionID]
	return ok
}

func (e *Engine) setState(requestID, sessionID, state string) {
	logging.Debug().
		Str("requestID", requestID).
		Str("sessionID", sessionID).
		Str("state", state).
		Msg("request state")
	event.Publish(event.Event{
		Type: event.RequestState,
		Data: event.RequestStateData{RequestID: requestID, SessionID: sessionID, State: state},
	})
}

// fail publishes the terminal failed state. state names the last
// state the request had entered when it failed.
func (e *Engine) fail(requestID, sessionID, state, kind string, err error, partial bool) {
	logging.Warn().
		Err(err).
		Str("requestID", requestID).
		Str("sessionID", sessionID).
		Str("state", state).
		Str("kind", kind).
		Msg("request failed")
	e.setState(requestID, sessionID, StateFailed)
	event.Publish(event.Event{
		Type: event.RequestFailed,
		Data: event.RequestFailedData{
			RequestID: requestID,
			SessionID: sessionID,
			State:     state,
			Kind:      kind,
			Err:       err.Error(),
			Partial:   partial,
		},
	})
}

// emptyResultError maps an inference that produced no text onto the
// error taxonomy.
func (e *Engine) emptyResultError(ctx context.Context, res *types.InferenceResult) error {
	switch res.Reason {
	case types.ReasonCancelled:
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	case types.ReasonTimeout:
		return &inference.TimeoutError{Timeout: e.cfg.InferenceTimeout}
	case types.ReasonError:
		return &inference.TransportError{Attempts: res.Retries + 1, Err: errors.New("model stream failed")}
	default:
		return &inference.TransportError{Attempts: res.Retries + 1, Err: errors.New("model returned an empty completion")}
	}
}

// failKind buckets a pipeline error for request.failed events.
func failKind(err error) string {
	var timeoutErr *inference.TimeoutError
	var transportErr *inference.TransportError
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return FailCancelled
	case errors.As(err, &timeoutErr):
		return FailTimeout
	case errors.As(err, &transportErr):
		return FailTransport
	default:
		return FailInternal
	}
}
