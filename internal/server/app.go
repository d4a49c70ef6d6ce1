package server

import (
	"context"
	"fmt"
	"time"

	embopenai "github.com/cloudwego/eino-ext/components/embedding/openai"

	"github.com/advisor-ai/advisor/internal/audit"
	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/inference"
	"github.com/advisor-ai/advisor/internal/intent"
	"github.com/advisor-ai/advisor/internal/knowledge"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/internal/metrics"
	"github.com/advisor-ai/advisor/internal/normalize"
	"github.com/advisor-ai/advisor/internal/orchestrator"
	"github.com/advisor-ai/advisor/internal/prompt"
	"github.com/advisor-ai/advisor/internal/retrieval"
	"github.com/advisor-ai/advisor/internal/safety"
	"github.com/advisor-ai/advisor/pkg/types"
)

// App holds the wired conversation pipeline and its supporting services.
// Both binaries assemble the service through Build so the wiring cannot
// drift between them.
type App struct {
	Config  *types.Config
	Engine  *orchestrator.Engine
	Store   history.Store
	Metrics *metrics.Collector

	auditor *audit.Writer
	watcher *safety.Watcher
}

// Build wires the pipeline from configuration. defaultAuditDir is used
// when auditing is enabled without an explicit directory.
func Build(ctx context.Context, cfg *types.Config, defaultAuditDir string) (*App, error) {
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	driver, err := inference.NewDriver(ctx, inference.Config{
		BaseURL:         cfg.Model.BaseURL,
		APIKey:          cfg.Model.APIKey,
		Model:           cfg.Model.Name,
		Temperature:     cfg.Model.Temperature,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
		Timeout:         cfg.Model.Timeout(),
		RetryLimit:      cfg.Model.RetryLimit,
		MaxConcurrent:   cfg.Model.MaxConcurrent,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("inference driver: %w", err)
	}

	retriever, err := buildRetriever(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	chain, err := safety.LoadChain(cfg.Safety)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("safety chain: %w", err)
	}

	var watcher *safety.Watcher
	if cfg.Safety.Watch && cfg.Safety.RulesFile != "" {
		watcher, err = safety.NewWatcher(cfg.Safety.RulesFile, chain)
		if err != nil {
			logging.Warn().Err(err).Msg("safety rules watcher unavailable")
		} else {
			watcher.Start()
		}
	}

	var classifier *intent.Classifier
	if cfg.Router.Enabled {
		classifier = intent.NewClassifier(driver, cfg.Router.Timeout(), true)
	}

	engine := orchestrator.New(
		orchestrator.Config{
			MaxContextTokens:   cfg.Context.MaxContextTokens,
			HistoryTokenBudget: cfg.Context.HistoryTokenBudget,
			RetrievalK:         cfg.Retrieval.K,
			InferenceTimeout:   cfg.Model.Timeout(),
		},
		normalize.New(cfg.Context.MaxMessageChars),
		store,
		retriever,
		classifier,
		prompt.NewComposer(),
		driver,
		chain,
	)

	app := &App{
		Config:  cfg,
		Engine:  engine,
		Store:   store,
		Metrics: metrics.NewCollector(),
		watcher: watcher,
	}

	if cfg.Audit.Enabled {
		dir := cfg.Audit.Dir
		if dir == "" {
			dir = defaultAuditDir
		}
		app.auditor, err = audit.NewWriter(dir)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("audit writer: %w", err)
		}
	}

	return app, nil
}

// ServerConfig maps service configuration onto the HTTP server's knobs.
func (a *App) ServerConfig() *Config {
	cfg := DefaultConfig()
	cfg.Port = a.Config.Server.Port
	cfg.EnableCORS = a.Config.Server.EnableCORS
	cfg.RateRPS = a.Config.RateLimit.RequestsPerSecond
	cfg.RateBurst = a.Config.RateLimit.Burst
	return cfg
}

// Close releases the pipeline's background resources in reverse
// dependency order.
func (a *App) Close() {
	if a.auditor != nil {
		a.auditor.Close()
	}
	if a.Metrics != nil {
		a.Metrics.Close()
	}
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func buildStore(cfg *types.Config) (history.Store, error) {
	if cfg.Sessions.RedisURL != "" {
		store, err := history.NewRedisStore(cfg.Sessions.RedisURL, cfg.Context.HistoryTokenBudget, cfg.Sessions.IdleTTL())
		if err != nil {
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		logging.Info().Msg("using redis session store")
		return store, nil
	}
	return history.NewMemoryStore(history.MemoryOptions{
		HistoryTokenBudget: cfg.Context.HistoryTokenBudget,
		IdleTTL:            cfg.Sessions.IdleTTL(),
		SweepInterval:      cfg.Sessions.SweepInterval(),
	}), nil
}

// buildRetriever picks the retrieval backend: nil when disabled, qdrant
// when a host is configured, the built-in knowledge base otherwise.
// Every backend is wrapped fail-open so retrieval can never fail a request.
func buildRetriever(ctx context.Context, cfg *types.Config) (retrieval.Retriever, error) {
	if !cfg.Retrieval.Enabled {
		return nil, nil
	}

	timeout := cfg.Retrieval.Timeout()
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	if cfg.Retrieval.Qdrant.Host != "" {
		embedder, err := embopenai.NewEmbedder(ctx, &embopenai.EmbeddingConfig{
			APIKey:  cfg.Model.APIKey,
			Model:   cfg.Retrieval.Qdrant.EmbedModel,
			BaseURL: inference.NormalizeBaseURL(cfg.Model.BaseURL),
		})
		if err != nil {
			return nil, fmt.Errorf("query embedder: %w", err)
		}
		qr, err := retrieval.NewQdrant(retrieval.QdrantOptions{
			Host:       cfg.Retrieval.Qdrant.Host,
			Port:       cfg.Retrieval.Qdrant.Port,
			APIKey:     cfg.Retrieval.Qdrant.APIKey,
			UseTLS:     cfg.Retrieval.Qdrant.UseTLS,
			Collection: cfg.Retrieval.Qdrant.Collection,
			MinScore:   cfg.Retrieval.MinScore,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("qdrant retriever: %w", err)
		}
		logging.Info().Str("collection", cfg.Retrieval.Qdrant.Collection).Msg("using qdrant retrieval backend")
		return retrieval.NewFailOpen(qr, timeout), nil
	}

	base := knowledge.Default()
	if cfg.Retrieval.KnowledgeFile != "" {
		loaded, err := knowledge.LoadFile(cfg.Retrieval.KnowledgeFile)
		if err != nil {
			return nil, fmt.Errorf("knowledge base: %w", err)
		}
		base = loaded
	}
	return retrieval.NewFailOpen(base, timeout), nil
}
