package inference

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/pkg/types"
)

// Chunk is one streamed piece of model output.
type Chunk struct {
	Text string
	Seq  int
}

// Stream delivers model output incrementally. Recv returns chunks in
// generation order and io.EOF once the stream has terminated; after EOF,
// Result reports how the call ended, including partial text from timeouts,
// cancellation, or mid-stream failures.
type Stream struct {
	driver    *Driver
	inferCtx  context.Context
	callerCtx context.Context
	cancel    context.CancelFunc
	reader    *schema.StreamReader[*schema.Message]
	first     *schema.Message
	opts      Options
	retries   int
	start     time.Time

	chunks chan Chunk
	done   chan struct{}
	result *types.InferenceResult
}

func newStream(
	d *Driver,
	inferCtx, callerCtx context.Context,
	cancel context.CancelFunc,
	reader *schema.StreamReader[*schema.Message],
	first *schema.Message,
	opts Options,
	retries int,
	start time.Time,
) *Stream {
	return &Stream{
		driver:    d,
		inferCtx:  inferCtx,
		callerCtx: callerCtx,
		cancel:    cancel,
		reader:    reader,
		first:     first,
		opts:      opts,
		retries:   retries,
		start:     start,
		chunks:    make(chan Chunk, 16),
		done:      make(chan struct{}),
	}
}

// Recv returns the next chunk, or io.EOF after the terminal result is set.
func (s *Stream) Recv() (Chunk, error) {
	c, ok := <-s.chunks
	if !ok {
		return Chunk{}, io.EOF
	}
	return c, nil
}

// Result returns the terminal outcome. It blocks until the stream has
// finished; callers normally drain Recv first.
func (s *Stream) Result() *types.InferenceResult {
	<-s.done
	return s.result
}

// Close stops the stream early and releases the model connection. Pending
// output is discarded; Result remains available.
func (s *Stream) Close() {
	s.cancel()
	// Drain so the pump can finish even if nobody is receiving.
	for range s.chunks {
	}
	<-s.done
}

// pump reads the model stream, forwards text deltas, and settles the
// terminal result. It owns the reader, the timeout context, and the pool
// slot.
func (s *Stream) pump() {
	var text strings.Builder
	var usage types.TokenUsage
	var finish string
	reason := types.ReasonStop
	seq := 0

	defer func() {
		s.reader.Close()
		s.cancel()
		s.driver.sem.Release(1)

		s.result = &types.InferenceResult{
			Text:    text.String(),
			Reason:  reason,
			Usage:   usage,
			Retries: s.retries,
			Latency: time.Since(s.start),
		}
		close(s.chunks)
		close(s.done)
	}()

	emit := func(msg *schema.Message) {
		if msg == nil {
			return
		}
		if msg.Content != "" {
			text.WriteString(msg.Content)
			c := Chunk{Text: msg.Content, Seq: seq}
			seq++

			select {
			case s.chunks <- c:
			case <-s.inferCtx.Done():
			}
			event.Publish(event.Event{
				Type: event.ResponseChunk,
				Data: event.ResponseChunkData{
					RequestID: s.opts.RequestID,
					SessionID: s.opts.SessionID,
					Delta:     msg.Content,
					Seq:       c.Seq,
				},
			})
		}
		if msg.ResponseMeta != nil {
			if msg.ResponseMeta.Usage != nil {
				usage.Prompt = msg.ResponseMeta.Usage.PromptTokens
				usage.Completion = msg.ResponseMeta.Usage.CompletionTokens
			}
			if msg.ResponseMeta.FinishReason != "" {
				finish = msg.ResponseMeta.FinishReason
			}
		}
	}

	emit(s.first)

	for {
		if s.inferCtx.Err() != nil {
			reason = reasonForStreamErr(s.callerCtx, s.inferCtx)
			return
		}

		msg, err := s.reader.Recv()
		if err == io.EOF {
			reason = reasonForFinish(finish)
			return
		}
		if err != nil {
			reason = reasonForStreamErr(s.callerCtx, s.inferCtx)
			return
		}
		emit(msg)
	}
}

// reasonForFinish maps the wire finish reason onto the completion taxonomy.
func reasonForFinish(finish string) types.CompletionReason {
	switch finish {
	case "length", "max_tokens":
		return types.ReasonLength
	default:
		return types.ReasonStop
	}
}
