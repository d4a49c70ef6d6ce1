package types

import "time"

// Config is the root configuration for the advisor service.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Model     ModelConfig     `json:"model"`
	Context   ContextConfig   `json:"context"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Router    RouterConfig    `json:"router"`
	Safety    SafetyConfig    `json:"safety"`
	Sessions  SessionConfig   `json:"sessions"`
	Audit     AuditConfig     `json:"audit"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port       int  `json:"port"`
	EnableCORS bool `json:"enableCORS"`
}

// ModelConfig points the inference driver at a local model endpoint.
type ModelConfig struct {
	BaseURL         string  `json:"baseURL"`
	Name            string  `json:"name"`
	APIKey          string  `json:"apiKey"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TimeoutSeconds  int     `json:"timeoutSeconds"`
	RetryLimit      int     `json:"retryLimit"`
	MaxConcurrent   int     `json:"maxConcurrent"`
}

// Timeout returns the per-call inference deadline.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// ContextConfig bounds prompt composition and history retention.
type ContextConfig struct {
	MaxContextTokens   int `json:"maxContextTokens"`
	HistoryTokenBudget int `json:"historyTokenBudget"`
	MaxMessageChars    int `json:"maxMessageChars"`
}

// RetrievalConfig controls the optional retrieval augmenter.
type RetrievalConfig struct {
	Enabled        bool         `json:"enabled"`
	K              int          `json:"k"`
	MinScore       float64      `json:"minScore"`
	TimeoutSeconds int          `json:"timeoutSeconds"`
	KnowledgeFile  string       `json:"knowledgeFile"`
	Qdrant         QdrantConfig `json:"qdrant"`
}

// Timeout returns the retrieval deadline after which the augmenter fails open.
func (r RetrievalConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// QdrantConfig points the vector retriever at a qdrant instance. A blank
// host disables the vector backend in favor of the built-in knowledge base.
type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"apiKey"`
	UseTLS     bool   `json:"useTLS"`
	Collection string `json:"collection"`
	EmbedModel string `json:"embedModel"`
}

// RouterConfig controls model-assisted intent classification.
type RouterConfig struct {
	Enabled        bool `json:"enabled"`
	TimeoutSeconds int  `json:"timeoutSeconds"`
}

// Timeout returns the routing deadline after which classification falls back.
func (r RouterConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SafetyConfig controls the response filter chain.
type SafetyConfig struct {
	RulesFile string `json:"rulesFile"`
	Watch     bool   `json:"watch"`
}

// SessionConfig controls session retention and the redis backend.
type SessionConfig struct {
	IdleTTLSeconds       int    `json:"idleTTLSeconds"`
	SweepIntervalSeconds int    `json:"sweepIntervalSeconds"`
	RedisURL             string `json:"redisURL"`
}

// IdleTTL returns how long an inactive session is retained.
func (s SessionConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLSeconds) * time.Second
}

// SweepInterval returns how often expired sessions are swept.
func (s SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// AuditConfig controls the on-disk audit trail.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// RateLimitConfig bounds inbound request rates per client address.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level      string `json:"level"`
	Pretty     bool   `json:"pretty"`
	TimeFormat string `json:"timeFormat"`
	ToFile     bool   `json:"toFile"`
	Dir        string `json:"dir"`
}
