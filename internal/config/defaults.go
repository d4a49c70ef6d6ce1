package config

import "github.com/advisor-ai/advisor/pkg/types"

// Default returns the baseline configuration the service runs with when no
// config file or environment override is present. The model endpoint defaults
// target a local ollama instance.
func Default() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Port:       8080,
			EnableCORS: true,
		},
		Model: types.ModelConfig{
			BaseURL:         "http://ollama:11434",
			Name:            "llama3.2:3b",
			APIKey:          "ollama",
			Temperature:     0.1,
			MaxOutputTokens: 1024,
			TimeoutSeconds:  60,
			RetryLimit:      3,
			MaxConcurrent:   4,
		},
		Context: types.ContextConfig{
			MaxContextTokens:   4096,
			HistoryTokenBudget: 2048,
			MaxMessageChars:    1000,
		},
		Retrieval: types.RetrievalConfig{
			Enabled:        true,
			K:              3,
			MinScore:       0,
			TimeoutSeconds: 2,
			Qdrant: types.QdrantConfig{
				Port:       6334,
				Collection: "advisor-knowledge",
				EmbedModel: "nomic-embed-text",
			},
		},
		Router: types.RouterConfig{
			Enabled:        true,
			TimeoutSeconds: 10,
		},
		Sessions: types.SessionConfig{
			IdleTTLSeconds:       1800,
			SweepIntervalSeconds: 300,
		},
		Audit: types.AuditConfig{
			Enabled: false,
		},
		RateLimit: types.RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             0,
		},
		Log: types.LogConfig{
			Level: "info",
		},
	}
}
