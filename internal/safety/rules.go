package safety

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/advisor-ai/advisor/pkg/types"
)

// Disclaimer is appended to responses that read like direct advice.
const Disclaimer = "This is general educational information, not personalized investment advice. Consider consulting a licensed financial advisor before making investment decisions."

// DefaultRules is the chain used when no rules file is configured.
// Blocks run first so a violating response never gets annotated.
func DefaultRules() []Rule {
	return []Rule{
		{
			// Promissory phrasings only; "there are no guaranteed
			// returns" is legitimate teaching and must pass.
			Name:    "guaranteed-returns",
			Action:  ActionBlock,
			Pattern: `(?i)\b(?:offers?|promises?|provides?|with|earn|get)\s+guaranteed\s+returns?\b|\breturns?\s+are\s+guaranteed\b|\bguaranteed?\s+(?:you\s+)?\d[\d.]*\s*%`,
		},
		{
			Name:    "insider-information",
			Action:  ActionBlock,
			Pattern: `(?i)\b(?:act|trade|buy|sell)\w*\s+on\s+insider\b|\binsider\s+tips?\b`,
		},
		{
			Name:        "account-numbers",
			Action:      ActionRedact,
			Pattern:     `\b\d{12,19}\b`,
			Replacement: "[redacted]",
		},
		{
			Name:    "advice-disclaimer",
			Action:  ActionAnnotate,
			Pattern: `(?i)\b(?:you\s+should\s+(?:buy|sell|invest)|i\s+recommend|i\s+suggest|best\s+(?:stocks?|funds?|etfs?)\s+to\s+buy)\b`,
			Note:    Disclaimer,
		},
	}
}

type rulesFile struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// LoadFile reads an ordered rule list from a YAML (or JSON) file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("safety: parse %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("safety: %s defines no rules", path)
	}
	return f.Rules, nil
}

// LoadChain builds the chain from configuration. A configured rules
// file that cannot be read or compiled is a startup error; no file
// configured means the built-in defaults.
func LoadChain(cfg types.SafetyConfig) (*Chain, error) {
	if cfg.RulesFile == "" {
		return NewChain(DefaultRules())
	}
	rules, err := LoadFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return NewChain(rules)
}
