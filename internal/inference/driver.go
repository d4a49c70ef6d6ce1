// Package inference drives the locally hosted model over its
// OpenAI-compatible endpoint. A Driver owns one eino chat model and a
// bounded connection pool shared by every session; calls beyond the bound
// queue on the semaphore rather than opening extra connections.
//
// Retry policy: connection attempts (and the wait for the first streamed
// message) are retried with exponential backoff and jitter. Once anything
// has been received, a failure is terminal and surfaces as an
// InferenceResult carrying whatever partial text accumulated, never as a
// silent re-request.
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/semaphore"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

const (
	// retryInitialInterval is the initial interval for exponential backoff.
	retryInitialInterval = 500 * time.Millisecond
	// retryMaxInterval is the maximum interval for exponential backoff.
	retryMaxInterval = 10 * time.Second
)

// Config holds the model endpoint settings.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint, e.g. an Ollama host.
	// A missing /v1 suffix is appended.
	BaseURL string
	// APIKey is sent as the bearer token. Local endpoints ignore the
	// value but the protocol requires one; defaults to "ollama".
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	// Timeout is the wall-clock budget for one inference call, covering
	// connection retries and streaming.
	Timeout time.Duration
	// RetryLimit caps connection retries per call.
	RetryLimit int
	// MaxConcurrent bounds in-flight model calls across all sessions.
	MaxConcurrent int
}

// Options carries per-call identifiers used in published events.
type Options struct {
	RequestID string
	SessionID string
}

// TransportError reports that the model endpoint could not be reached
// before any output was produced, after exhausting retries.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inference transport failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the wall-clock budget expired before the model
// produced any output. Expiry after partial output is not an error; it
// surfaces as an InferenceResult with reason timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("inference timed out after %s with no output", e.Timeout)
}

// Driver executes prompt plans against the configured model.
type Driver struct {
	chatModel model.BaseChatModel
	cfg       Config
	sem       *semaphore.Weighted
}

// NewDriver connects the eino chat model for the configured endpoint.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)

	maxTokens := cfg.MaxOutputTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:              cfg.APIKey,
		Model:               cfg.Model,
		BaseURL:             cfg.BaseURL,
		MaxCompletionTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Driver{
		chatModel: chatModel,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}, nil
}

// NormalizeBaseURL appends the /v1 path segment OpenAI-compatible
// endpoints serve under when the configured URL omits it.
func NormalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if trimmed == "" {
		return trimmed
	}
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// Infer executes a prompt plan and returns a live stream of output chunks.
//
// Infer blocks while queued for the connection pool and while the stream is
// being established (including retries); it returns once the model has begun
// responding. The returned error is a TransportError after retry
// exhaustion, a TimeoutError if the budget expired with nothing received,
// or the caller context's error on cancellation.
func (d *Driver) Infer(ctx context.Context, plan *types.PromptPlan, opts Options) (*Stream, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	start := time.Now()
	messages := planMessages(plan)

	inferCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)

	reader, first, retries, err := d.connect(inferCtx, ctx, messages, opts)
	if err != nil {
		cancel()
		d.sem.Release(1)
		return nil, err
	}

	s := newStream(d, inferCtx, ctx, cancel, reader, first, opts, retries, start)
	go s.pump()
	return s, nil
}

// connect establishes the model stream and receives its first message,
// retrying with backoff while nothing has arrived.
func (d *Driver) connect(inferCtx, callerCtx context.Context, messages []*schema.Message, opts Options) (*schema.StreamReader[*schema.Message], *schema.Message, int, error) {
	b := d.newBackoff(inferCtx)
	attempts := 0

	for {
		attempts++
		reader, first, err := d.open(inferCtx, messages)
		if err == nil {
			return reader, first, attempts - 1, nil
		}

		// The budget or the caller ending takes precedence over retry
		// accounting.
		if callerCtx.Err() != nil {
			return nil, nil, attempts - 1, callerCtx.Err()
		}
		if inferCtx.Err() != nil {
			return nil, nil, attempts - 1, &TimeoutError{Timeout: d.cfg.Timeout}
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil, nil, attempts - 1, &TransportError{Attempts: attempts, Err: err}
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("wait", wait).
			Str("requestID", opts.RequestID).
			Msg("inference attempt failed, retrying")
		event.Publish(event.Event{
			Type: event.RequestRetry,
			Data: event.RequestRetryData{
				RequestID: opts.RequestID,
				SessionID: opts.SessionID,
				Attempt:   attempts,
				Wait:      wait,
				Err:       err.Error(),
			},
		})

		select {
		case <-time.After(wait):
		case <-inferCtx.Done():
			if callerCtx.Err() != nil {
				return nil, nil, attempts - 1, callerCtx.Err()
			}
			return nil, nil, attempts - 1, &TimeoutError{Timeout: d.cfg.Timeout}
		}
	}
}

// open starts one streaming attempt. The first message is received here so
// that a connection accepted and immediately dropped still counts as a
// transport failure rather than a truncated answer.
func (d *Driver) open(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], *schema.Message, error) {
	reader, err := d.chatModel.Stream(ctx, messages, d.callOptions()...)
	if err != nil {
		return nil, nil, err
	}

	first, err := reader.Recv()
	if err == io.EOF {
		// The model closed the stream without a single message. Treat
		// as an empty completion.
		return reader, nil, nil
	}
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	return reader, first, nil
}

func (d *Driver) callOptions() []model.Option {
	opts := []model.Option{
		openai.WithMaxCompletionTokens(d.cfg.MaxOutputTokens),
	}
	if d.cfg.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(d.cfg.Temperature)))
	}
	return opts
}

// newBackoff builds the retry schedule with jitter, bounded by the call
// context.
func (d *Driver) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = d.cfg.Timeout
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.cfg.RetryLimit)), ctx)
}

// Complete executes a small non-streamed call outside any conversation,
// sharing the connection pool. Used for intent routing.
func (d *Driver) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer d.sem.Release(1)

	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}
	opts := []model.Option{openai.WithMaxCompletionTokens(maxTokens)}

	msg, err := d.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// planMessages converts a prompt plan into eino chat messages. System-role
// segments (instructions and snippets) fold into one leading system message.
func planMessages(plan *types.PromptPlan) []*schema.Message {
	var systemParts []string
	messages := make([]*schema.Message, 0, len(plan.Segments))

	for _, seg := range plan.Segments {
		if seg.Role == types.RoleSystem {
			systemParts = append(systemParts, seg.Text)
			continue
		}
		messages = append(messages, &schema.Message{
			Role:    schemaRole(seg.Role),
			Content: seg.Text,
		})
	}

	if len(systemParts) > 0 {
		system := &schema.Message{
			Role:    schema.System,
			Content: strings.Join(systemParts, "\n\n"),
		}
		messages = append([]*schema.Message{system}, messages...)
	}
	return messages
}

func schemaRole(role types.Role) schema.RoleType {
	switch role {
	case types.RoleUser:
		return schema.User
	case types.RoleSystem:
		return schema.System
	default:
		return schema.Assistant
	}
}

// reasonForStreamErr classifies a mid-stream failure.
func reasonForStreamErr(callerCtx, inferCtx context.Context) types.CompletionReason {
	switch {
	case callerCtx.Err() != nil:
		return types.ReasonCancelled
	case errors.Is(inferCtx.Err(), context.DeadlineExceeded):
		return types.ReasonTimeout
	default:
		return types.ReasonError
	}
}
