package knowledge

// Concept is one entry of educational content in the knowledge base.
// Keyword matching connects user questions to concepts; the formatted
// body becomes retrieval snippet text for prompt composition.
type Concept struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Definition string   `yaml:"definition"`
	KeyPoints  []string `yaml:"keyPoints,omitempty"`
	Example    string   `yaml:"example,omitempty"`
	Formula    string   `yaml:"formula,omitempty"`
	Types      []string `yaml:"types,omitempty"`
	Related    []string `yaml:"related,omitempty"`
	Keywords   []string `yaml:"keywords"`
}

// defaultConcepts is the built-in financial education content served when no
// knowledge file or vector backend is configured.
func defaultConcepts() []Concept {
	return []Concept{
		{
			ID:         "compound_interest",
			Title:      "Compound Interest",
			Definition: "The process where interest is earned on both the original principal and previously earned interest, creating exponential growth over time.",
			KeyPoints: []string{
				"Einstein allegedly called it 'the eighth wonder of the world'",
				"Time is the most important factor in compound growth",
				"Small amounts invested early can outperform large amounts invested later",
			},
			Example:  "₹10,000 invested at 8% annual interest becomes ₹10,800 in year 1, ₹11,664 in year 2, ₹12,597 in year 3, growing exponentially.",
			Formula:  "A = P(1 + r/n)^(nt) where P=principal, r=rate, n=compounding frequency, t=time",
			Related:  []string{"time_value_of_money", "investing", "retirement_planning"},
			Keywords: []string{"compound", "compounding", "growth"},
		},
		{
			ID:         "time_value_of_money",
			Title:      "Time Value of Money",
			Definition: "The concept that money available today is worth more than the same amount in the future due to its earning potential.",
			KeyPoints: []string{
				"Money can be invested to generate returns over time",
				"Inflation erodes purchasing power over time",
				"Present value calculations help compare future cash flows",
			},
			Example:  "₹100 today at 10% interest is worth ₹110 in one year, making it more valuable than receiving ₹100 next year.",
			Related:  []string{"compound_interest", "inflation", "present_value"},
			Keywords: []string{"time value", "present value", "future value"},
		},
		{
			ID:         "risk_return_relationship",
			Title:      "Risk and Return",
			Definition: "The fundamental investment principle that higher potential returns typically come with higher levels of risk.",
			KeyPoints: []string{
				"Risk and return are directly correlated in efficient markets",
				"Diversification can reduce risk without proportionally reducing returns",
				"Risk tolerance varies by individual circumstances and timeline",
			},
			Types: []string{
				"Low: Government bonds, savings accounts (2-4% returns)",
				"Medium: Diversified mutual funds, blue-chip stocks (6-10% returns)",
				"High: Growth stocks, emerging markets (10%+ potential, higher volatility)",
			},
			Related:  []string{"diversification", "asset_allocation", "volatility"},
			Keywords: []string{"risk return", "risk vs return", "risk reward"},
		},
		{
			ID:         "diversification",
			Title:      "Diversification",
			Definition: "The strategy of spreading investments across different assets, sectors, or geographies to reduce overall portfolio risk.",
			KeyPoints: []string{
				"Don't put all eggs in one basket",
				"Reduces unsystematic (company-specific) risk",
				"Can be achieved through asset classes, sectors, or geography",
			},
			Types: []string{
				"Asset Class: Stocks, bonds, real estate, commodities",
				"Sector: Technology, healthcare, finance, consumer goods",
				"Geographic: Domestic vs. international markets",
			},
			Example:  "A portfolio with 60% stocks, 30% bonds, 10% REITs is less risky than 100% in one stock.",
			Related:  []string{"asset_allocation", "correlation", "modern_portfolio_theory"},
			Keywords: []string{"diversify", "diversification", "spread risk"},
		},
		{
			ID:         "stocks",
			Title:      "Stocks",
			Definition: "Shares of ownership in a company that entitle holders to a portion of profits and voting rights.",
			KeyPoints: []string{
				"Represent ownership stake in companies",
				"Can provide returns through dividends and capital appreciation",
				"Higher risk but historically higher long-term returns than bonds",
			},
			Types: []string{
				"Common Stock: Voting rights, variable dividends",
				"Preferred Stock: Fixed dividends, no voting rights, priority in liquidation",
			},
			Related:  []string{"dividends", "capital_gains", "market_capitalization"},
			Keywords: []string{"stock", "shares", "equity", "share market"},
		},
		{
			ID:         "bonds",
			Title:      "Bonds",
			Definition: "Debt securities where investors loan money to entities (government/corporate) in exchange for periodic interest payments plus return of principal.",
			KeyPoints: []string{
				"Lower risk than stocks but also lower expected returns",
				"Provide steady income through interest payments",
				"Bond prices move inversely to interest rates",
			},
			Types: []string{
				"Government Bonds: Issued by national governments, lowest risk",
				"Corporate Bonds: Issued by companies, higher yield but more risk",
				"Municipal Bonds: Issued by local governments, often tax-exempt",
			},
			Related:  []string{"interest_rates", "credit_rating", "duration"},
			Keywords: []string{"bond", "fixed income", "debt securities"},
		},
		{
			ID:         "mutual_funds",
			Title:      "Mutual Funds",
			Definition: "Investment vehicles that pool money from many investors to purchase a diversified portfolio of stocks, bonds, or other securities.",
			KeyPoints: []string{
				"Professional management and diversification for small investors",
				"Lower minimum investment than building diversified portfolio directly",
				"Come in many varieties (equity, debt, hybrid, index funds)",
			},
			Types:    []string{"Equity funds", "Debt funds", "Hybrid funds", "Index funds"},
			Related:  []string{"expense_ratio", "nav", "systematic_investment_plan"},
			Keywords: []string{"mutual fund", "mutual funds", "fund"},
		},
		{
			ID:         "etf",
			Title:      "Exchange-Traded Funds",
			Definition: "Exchange-Traded Funds are investment funds traded on stock exchanges like individual stocks, typically tracking an index.",
			KeyPoints: []string{
				"Combine benefits of mutual funds and individual stocks",
				"Generally lower fees than actively managed mutual funds",
				"Can be bought and sold throughout trading hours",
			},
			Types:    []string{"S&P 500 ETFs", "Bond ETFs", "Sector ETFs", "International ETFs"},
			Related:  []string{"index_investing", "passive_investing", "expense_ratio"},
			Keywords: []string{"etf", "exchange traded fund", "index fund"},
		},
		{
			ID:         "pe_ratio",
			Title:      "P/E Ratio",
			Definition: "Price-to-Earnings ratio measures a company's share price relative to its earnings per share, indicating how much investors pay for each dollar of earnings.",
			KeyPoints: []string{
				"Higher P/E suggests investors expect higher growth",
				"Can indicate overvaluation or undervaluation",
				"Should be compared to industry averages and historical levels",
			},
			Formula: "P/E Ratio = Market Price per Share / Earnings per Share",
			Types: []string{
				"Low P/E (< 15): May be undervalued or facing challenges",
				"Medium P/E (15-25): Fairly valued for most mature companies",
				"High P/E (> 25): High growth expectations or potentially overvalued",
			},
			Related:  []string{"earnings_per_share", "valuation", "growth_stocks"},
			Keywords: []string{"p/e ratio", "pe ratio", "price earnings", "price to earnings"},
		},
		{
			ID:         "roe",
			Title:      "Return on Equity",
			Definition: "Return on Equity measures how efficiently a company uses shareholders' equity to generate profits.",
			KeyPoints: []string{
				"Higher ROE generally indicates better management efficiency",
				"Should be compared to industry peers",
				"Can be artificially inflated by high debt levels",
			},
			Formula: "ROE = Net Income / Shareholders' Equity × 100%",
			Types: []string{
				"Excellent: > 20%",
				"Good: 15-20%",
				"Average: 10-15%",
				"Poor: < 10%",
			},
			Related:  []string{"roa", "profit_margin", "financial_leverage"},
			Keywords: []string{"roe", "return on equity"},
		},
		{
			ID:         "dollar_cost_averaging",
			Title:      "Dollar-Cost Averaging",
			Definition: "Investment strategy of regularly investing fixed amounts regardless of market conditions to reduce the impact of volatility.",
			KeyPoints: []string{
				"Reduces timing risk by spreading purchases over time",
				"Particularly effective in volatile markets",
				"Requires discipline to continue during market downturns",
			},
			Example:  "Investing ₹5,000 monthly in an index fund for 20 years, regardless of market ups and downs.",
			Related:  []string{"systematic_investment_plan", "market_timing", "volatility"},
			Keywords: []string{"dollar cost", "sip", "systematic investment"},
		},
		{
			ID:         "asset_allocation",
			Title:      "Asset Allocation",
			Definition: "The strategic distribution of investments across different asset classes (stocks, bonds, cash) based on goals, time horizon, and risk tolerance.",
			KeyPoints: []string{
				"More important than individual security selection",
				"Should change as you age and circumstances change",
				"Balances growth potential with risk management",
			},
			Types: []string{
				"Conservative (Age 60+): 30% stocks, 60% bonds, 10% cash",
				"Moderate (Age 40-60): 60% stocks, 35% bonds, 5% cash",
				"Aggressive (Age 20-40): 80% stocks, 15% bonds, 5% cash",
			},
			Related:  []string{"risk_tolerance", "time_horizon", "rebalancing"},
			Keywords: []string{"asset allocation", "portfolio allocation"},
		},
		{
			ID:         "market_volatility",
			Title:      "Market Volatility",
			Definition: "The degree of variation in trading prices over time, measuring how much and how quickly prices move up and down.",
			KeyPoints: []string{
				"Normal part of market behavior",
				"Can create opportunities for patient investors",
				"Higher volatility generally means higher risk",
				"Measured as the standard deviation of returns over time",
			},
			Related:  []string{"risk", "standard_deviation", "beta"},
			Keywords: []string{"volatility", "market fluctuation"},
		},
		{
			ID:         "inflation",
			Title:      "Inflation",
			Definition: "The general increase in prices of goods and services over time, reducing the purchasing power of money.",
			KeyPoints: []string{
				"Erodes the real value of money over time",
				"Investments should aim to beat inflation rate",
				"Moderate inflation (2-3%) is considered healthy for economy",
			},
			Types: []string{
				"Stocks: Generally good hedge against inflation long-term",
				"Bonds: Fixed payments lose value in inflationary periods",
				"Real Estate: Often appreciates with inflation",
			},
			Related:  []string{"real_return", "purchasing_power", "tips"},
			Keywords: []string{"inflation", "purchasing power"},
		},
	}
}
