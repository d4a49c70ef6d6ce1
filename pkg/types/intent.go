package types

// Intent is the routed category of a user message.
type Intent string

const (
	IntentProfileAnalysis   Intent = "profile_analysis"
	IntentPortfolioCreation Intent = "portfolio_creation"
	IntentMarketResearch    Intent = "market_research"
	IntentQuestionAnswering Intent = "question_answering"
)

// ValidIntent reports whether s names a known intent category.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentProfileAnalysis, IntentPortfolioCreation, IntentMarketResearch, IntentQuestionAnswering:
		return true
	}
	return false
}
