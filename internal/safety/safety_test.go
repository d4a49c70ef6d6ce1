package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/pkg/types"
)

func result(text string) *types.InferenceResult {
	return &types.InferenceResult{Text: text, Reason: types.ReasonStop}
}

func mustChain(t *testing.T, rules []Rule) *Chain {
	t.Helper()
	c, err := NewChain(rules)
	require.NoError(t, err)
	return c
}

func TestValidatePassesCleanText(t *testing.T) {
	c := mustChain(t, DefaultRules())

	text, flags, err := c.Validate(result("Diversification spreads risk across many assets."), Options{})

	require.NoError(t, err)
	assert.Equal(t, "Diversification spreads risk across many assets.", text)
	assert.Empty(t, flags)
}

func TestValidateBlocks(t *testing.T) {
	c := mustChain(t, DefaultRules())

	for name, text := range map[string]string{
		"promised returns":   "This fund offers guaranteed returns every year.",
		"percent guarantee":  "We guarantee you 12% annually if you invest now.",
		"reversed phrasing":  "The returns are guaranteed by our strategy.",
		"insider suggestion": "I heard an insider tip that the stock will jump.",
	} {
		t.Run(name, func(t *testing.T) {
			out, flags, err := c.Validate(result(text), Options{RequestID: "req-1"})

			var policyErr *PolicyViolationError
			require.ErrorAs(t, err, &policyErr)
			assert.Empty(t, out)
			assert.Empty(t, flags)
		})
	}
}

func TestValidateAllowsTeachingAboutGuarantees(t *testing.T) {
	c := mustChain(t, DefaultRules())

	text := "Remember, there are no guaranteed returns in investing."
	out, flags, err := c.Validate(result(text), Options{})

	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.Empty(t, flags)
}

func TestValidateRedactsAccountNumbers(t *testing.T) {
	c := mustChain(t, DefaultRules())

	out, flags, err := c.Validate(result("Your account 1234567890123456 shows a balance."), Options{})

	require.NoError(t, err)
	assert.Equal(t, "Your account [redacted] shows a balance.", out)
	require.Len(t, flags, 1)
	assert.Equal(t, "account-numbers", flags[0].Rule)
	assert.Equal(t, "redact", flags[0].Action)
}

func TestValidateAnnotatesAdvice(t *testing.T) {
	c := mustChain(t, DefaultRules())

	out, flags, err := c.Validate(result("You should buy low-cost index funds."), Options{})

	require.NoError(t, err)
	assert.Contains(t, out, "You should buy low-cost index funds.")
	assert.Contains(t, out, Disclaimer)
	require.Len(t, flags, 1)
	assert.Equal(t, "advice-disclaimer", flags[0].Rule)
	assert.Equal(t, "annotate", flags[0].Action)
}

func TestValidateSkipsDuplicateNote(t *testing.T) {
	c := mustChain(t, DefaultRules())

	text := "You should buy index funds.\n\n" + Disclaimer
	out, flags, err := c.Validate(result(text), Options{})

	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.Empty(t, flags)
}

func TestValidateRunsRulesInOrder(t *testing.T) {
	// The redact rewrites the text before the block rule sees it.
	c := mustChain(t, []Rule{
		{Name: "rewrite", Action: ActionRedact, Pattern: `cash`, Replacement: "money"},
		{Name: "no-money-talk", Action: ActionBlock, Pattern: `money`},
	})

	_, _, err := c.Validate(result("keep some cash on hand"), Options{})

	var policyErr *PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "no-money-talk", policyErr.Rule)

	// Reversed order: the block rule never matches the original text.
	c = mustChain(t, []Rule{
		{Name: "no-money-talk", Action: ActionBlock, Pattern: `money`},
		{Name: "rewrite", Action: ActionRedact, Pattern: `cash`, Replacement: "money"},
	})

	out, flags, err := c.Validate(result("keep some cash on hand"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "keep some money on hand", out)
	assert.Len(t, flags, 1)
}

func TestValidateBlockShortCircuits(t *testing.T) {
	applied := make(chan event.Event, 4)
	unsub := event.Subscribe(event.FilterApplied, func(e event.Event) { applied <- e })
	defer unsub()

	c := mustChain(t, []Rule{
		{Name: "stop-everything", Action: ActionBlock, Pattern: `.`},
		{Name: "never-reached", Action: ActionRedact, Pattern: `.+`, Replacement: "x"},
	})

	_, _, err := c.Validate(result("anything"), Options{RequestID: "req-2", SessionID: "s1"})
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(applied) >= 1 }, 2*time.Second, 10*time.Millisecond)
	e := <-applied
	data, ok := e.Data.(event.FilterAppliedData)
	require.True(t, ok)
	assert.Equal(t, "stop-everything", data.Rule)
	assert.Equal(t, "block", data.Action)
	assert.Equal(t, "req-2", data.RequestID)
	assert.Equal(t, "s1", data.SessionID)
	assert.Empty(t, applied)
}

func TestValidateAppliesMultipleFlags(t *testing.T) {
	c := mustChain(t, DefaultRules())

	out, flags, err := c.Validate(result("You should buy this fund, account 123456789012 qualifies."), Options{})

	require.NoError(t, err)
	assert.Contains(t, out, "[redacted]")
	assert.Contains(t, out, Disclaimer)
	assert.Len(t, flags, 2)
}

func TestReplaceSwapsRules(t *testing.T) {
	c := mustChain(t, []Rule{
		{Name: "block-all", Action: ActionBlock, Pattern: `.`},
	})

	_, _, err := c.Validate(result("hello"), Options{})
	require.Error(t, err)

	require.NoError(t, c.Replace(nil))
	assert.Zero(t, c.Len())

	out, flags, err := c.Validate(result("hello"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Empty(t, flags)
}

func TestReplaceKeepsChainOnError(t *testing.T) {
	c := mustChain(t, []Rule{
		{Name: "block-all", Action: ActionBlock, Pattern: `.`},
	})

	err := c.Replace([]Rule{{Name: "broken", Action: ActionBlock, Pattern: `(`}})
	require.Error(t, err)

	_, _, err = c.Validate(result("hello"), Options{})
	assert.Error(t, err)
}

func TestNewChainRejectsInvalidRules(t *testing.T) {
	cases := map[string]Rule{
		"bad pattern":        {Name: "r", Action: ActionBlock, Pattern: `(`},
		"unknown action":     {Name: "r", Action: "drop", Pattern: `.`},
		"missing name":       {Action: ActionBlock, Pattern: `.`},
		"note-less annotate": {Name: "r", Action: ActionAnnotate, Pattern: `.`},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewChain([]Rule{rule})
			assert.Error(t, err)
		})
	}
}

func TestPolicyViolationErrorMessage(t *testing.T) {
	err := &PolicyViolationError{Rule: "guaranteed-returns"}
	assert.Contains(t, err.Error(), "guaranteed-returns")
}
