// Package intent routes a user message to one of the assistant's
// instruction sets with a single small model call. Routing is
// best-effort: any failure falls back to general question answering
// so a flaky router never blocks a conversation.
package intent

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

const routingInstructions = `You are an investment assistant router. Analyze the user's message and determine their primary intent.

Classify into one of these categories:
1. profile_analysis - User wants to discuss their investment profile, risk tolerance, goals
2. portfolio_creation - User wants portfolio recommendations or asset allocation advice
3. market_research - User asks about specific stocks, market trends, economic analysis
4. question_answering - General investment education, explaining concepts, how-to questions

Examples for question_answering:
- "What is compound interest?"
- "How does diversification work?"
- "Explain P/E ratio"
- "What's the difference between stocks and bonds?"
- "How to start investing?"

Respond with ONLY the category name and a confidence score (0-1).
Format: category_name|confidence_score

Examples:
- "I'm 30 years old and want to start investing" becomes profile_analysis|0.95
- "What stocks should I buy?" becomes portfolio_creation|0.85
- "How is Tesla performing?" becomes market_research|0.90
- "What is a P/E ratio?" becomes question_answering|0.95`

const (
	// routeMaxTokens bounds the routing reply; one line is enough.
	routeMaxTokens = 32

	defaultTimeout = 5 * time.Second

	// fallbackConfidence is reported whenever routing did not happen.
	fallbackConfidence = 0.5
)

// Completer is the narrow slice of the inference driver the
// classifier needs.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Classifier picks the intent category for a message.
type Classifier struct {
	model   Completer
	timeout time.Duration
	enabled bool
}

// NewClassifier builds a classifier over model. A nil model or
// enabled=false yields a classifier that always returns the default
// intent without calling out.
func NewClassifier(model Completer, timeout time.Duration, enabled bool) *Classifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Classifier{model: model, timeout: timeout, enabled: enabled}
}

// Classify returns the intent for message and the model's confidence.
// It never fails: timeouts, transport errors, and unparseable replies
// all resolve to question_answering with confidence 0.5.
func (c *Classifier) Classify(ctx context.Context, message string) (types.Intent, float64) {
	if c == nil || !c.enabled || c.model == nil {
		return types.IntentQuestionAnswering, fallbackConfidence
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.model.Complete(rctx, routingInstructions, message, routeMaxTokens)
	if err != nil {
		logging.Debug().Err(err).Msg("intent routing failed, defaulting to question answering")
		return types.IntentQuestionAnswering, fallbackConfidence
	}

	intent, confidence, ok := parseReply(reply)
	if !ok {
		logging.Debug().Str("reply", reply).Msg("unparseable routing reply, defaulting to question answering")
		return types.IntentQuestionAnswering, fallbackConfidence
	}
	return intent, confidence
}

// parseReply extracts "category|confidence" from the first line of a
// routing reply. Confidence is clamped to [0, 1].
func parseReply(reply string) (types.Intent, float64, bool) {
	line := strings.TrimSpace(reply)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	name, rawScore, found := strings.Cut(line, "|")
	if !found {
		return "", 0, false
	}
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
	if !types.ValidIntent(name) {
		return "", 0, false
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(rawScore), 64)
	if err != nil || math.IsNaN(score) {
		return "", 0, false
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return types.Intent(name), score, true
}
