package retrieval

import (
	"context"
	"time"

	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

// FailOpen wraps a Retriever so retrieval can never fail a request: errors,
// panics, and deadline overruns all degrade to an empty snippet list.
type FailOpen struct {
	inner   Retriever
	timeout time.Duration
}

// NewFailOpen wraps inner with a per-call timeout. A non-positive timeout
// leaves the caller's deadline in charge.
func NewFailOpen(inner Retriever, timeout time.Duration) *FailOpen {
	return &FailOpen{inner: inner, timeout: timeout}
}

// Retrieve implements Retriever. The returned error is always nil.
func (f *FailOpen) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievedSnippet, error) {
	if f.inner == nil || k <= 0 {
		return nil, nil
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	type result struct {
		snippets []types.RetrievedSnippet
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Warn().Any("panic", r).Msg("retriever panicked")
				ch <- result{}
			}
		}()
		snippets, err := f.inner.Retrieve(ctx, query, k)
		ch <- result{snippets: snippets, err: err}
	}()

	select {
	case <-ctx.Done():
		logging.Warn().Err(ctx.Err()).Msg("retrieval timed out, continuing without snippets")
		return nil, nil
	case res := <-ch:
		if res.err != nil {
			logging.Warn().Err(res.err).Msg("retrieval failed, continuing without snippets")
			return nil, nil
		}
		if len(res.snippets) > k {
			res.snippets = res.snippets[:k]
		}
		return Rank(res.snippets), nil
	}
}
