// Package safety applies an ordered filter chain to model output
// before it reaches a client. Rules run in configured order; the
// first block match fails the response, redact and annotate rewrite
// it and attach flags.
package safety

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

// Action is what a matched rule does to the response.
type Action string

const (
	ActionBlock    Action = "block"
	ActionRedact   Action = "redact"
	ActionAnnotate Action = "annotate"
)

// Rule is one configured filter.
type Rule struct {
	Name        string `json:"name" yaml:"name"`
	Action      Action `json:"action" yaml:"action"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Note        string `json:"note,omitempty" yaml:"note,omitempty"`
}

// PolicyViolationError reports that a block rule matched the model's
// output. The matched text itself never travels with the error.
type PolicyViolationError struct {
	Rule string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("response blocked by safety rule %q", e.Rule)
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Chain is an ordered, reloadable filter chain safe for concurrent
// use. Replace swaps the whole rule list; a validation pass in flight
// keeps the rules it started with.
type Chain struct {
	mu    sync.RWMutex
	rules []compiledRule
}

// NewChain compiles rules into a chain, preserving their order.
func NewChain(rules []Rule) (*Chain, error) {
	c := &Chain{}
	if err := c.Replace(rules); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace compiles and swaps in a new rule list atomically. The
// current chain stays active if any rule fails to compile.
func (c *Chain) Replace(rules []Rule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("safety: rule with pattern %q has no name", r.Pattern)
		}
		switch r.Action {
		case ActionBlock, ActionRedact, ActionAnnotate:
		default:
			return fmt.Errorf("safety: rule %q has unknown action %q", r.Name, r.Action)
		}
		if r.Action == ActionAnnotate && r.Note == "" {
			return fmt.Errorf("safety: annotate rule %q has no note", r.Name)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("safety: rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: r, re: re})
	}

	c.mu.Lock()
	c.rules = compiled
	c.mu.Unlock()
	return nil
}

// Rules returns the active rules in evaluation order.
func (c *Chain) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Rule, len(c.rules))
	for i, cr := range c.rules {
		out[i] = cr.rule
	}
	return out
}

// Len returns the number of active rules.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// Options identifies the request for filter events.
type Options struct {
	RequestID string
	SessionID string
}

// Validate runs the chain over the result's text and returns the
// filtered text plus one flag per rule that changed it. A block match
// short-circuits the remaining rules with PolicyViolationError and
// returns no text at all.
func (c *Chain) Validate(result *types.InferenceResult, opts Options) (string, []types.FilterFlag, error) {
	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	text := result.Text
	var flags []types.FilterFlag

	for _, cr := range rules {
		switch cr.rule.Action {
		case ActionBlock:
			if cr.re.MatchString(text) {
				logging.Warn().
					Str("rule", cr.rule.Name).
					Str("requestID", opts.RequestID).
					Msg("response blocked by safety rule")
				publishFilter(opts, cr.rule)
				return "", nil, &PolicyViolationError{Rule: cr.rule.Name}
			}

		case ActionRedact:
			if cr.re.MatchString(text) {
				text = cr.re.ReplaceAllString(text, cr.rule.Replacement)
				flags = append(flags, types.FilterFlag{Rule: cr.rule.Name, Action: string(ActionRedact)})
				publishFilter(opts, cr.rule)
			}

		case ActionAnnotate:
			// Skip when the model already included the note verbatim.
			if cr.re.MatchString(text) && !strings.Contains(text, cr.rule.Note) {
				text = strings.TrimRight(text, "\n") + "\n\n" + cr.rule.Note
				flags = append(flags, types.FilterFlag{Rule: cr.rule.Name, Action: string(ActionAnnotate)})
				publishFilter(opts, cr.rule)
			}
		}
	}

	return text, flags, nil
}

func publishFilter(opts Options, rule Rule) {
	event.Publish(event.Event{
		Type: event.FilterApplied,
		Data: event.FilterAppliedData{
			RequestID: opts.RequestID,
			SessionID: opts.SessionID,
			Rule:      rule.Name,
			Action:    string(rule.Action),
		},
	})
}
