package testutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/advisor-ai/advisor/internal/audit"
	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/inference"
	"github.com/advisor-ai/advisor/internal/intent"
	"github.com/advisor-ai/advisor/internal/knowledge"
	"github.com/advisor-ai/advisor/internal/metrics"
	"github.com/advisor-ai/advisor/internal/normalize"
	"github.com/advisor-ai/advisor/internal/orchestrator"
	"github.com/advisor-ai/advisor/internal/prompt"
	"github.com/advisor-ai/advisor/internal/retrieval"
	"github.com/advisor-ai/advisor/internal/safety"
	"github.com/advisor-ai/advisor/internal/server"
)

// TestServer wraps a fully wired advisory service for testing. The model
// endpoint is a MockModelServer, history lives in memory, and retrieval
// runs against the built-in knowledge base.
type TestServer struct {
	Server    *server.Server
	BaseURL   string
	Engine    *orchestrator.Engine
	Store     history.Store
	Collector *metrics.Collector
	Audit     *audit.Writer
	Model     *MockModelServer
	TempDir   string
	port      int
}

// TestServerOption configures TestServer
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	inferenceTimeout time.Duration
	retryLimit       int
	routerEnabled    bool
	retrieval        bool
	rules            []safety.Rule
	rateRPS          float64
	rateBurst        int
}

// WithInferenceTimeout sets the wall-clock budget per model call.
func WithInferenceTimeout(d time.Duration) TestServerOption {
	return func(c *testServerConfig) {
		c.inferenceTimeout = d
	}
}

// WithRetryLimit sets the connection retry cap per model call.
func WithRetryLimit(n int) TestServerOption {
	return func(c *testServerConfig) {
		c.retryLimit = n
	}
}

// WithoutRouter disables intent classification.
func WithoutRouter() TestServerOption {
	return func(c *testServerConfig) {
		c.routerEnabled = false
	}
}

// WithoutRetrieval disables the knowledge-base augmentation stage.
func WithoutRetrieval() TestServerOption {
	return func(c *testServerConfig) {
		c.retrieval = false
	}
}

// WithSafetyRules replaces the default response filter rules.
func WithSafetyRules(rules []safety.Rule) TestServerOption {
	return func(c *testServerConfig) {
		c.rules = rules
	}
}

// WithRateLimit sets the per-client request rate. The default is high
// enough that only tests opting in ever see a 429.
func WithRateLimit(rps float64, burst int) TestServerOption {
	return func(c *testServerConfig) {
		c.rateRPS = rps
		c.rateBurst = burst
	}
}

// StartTestServer creates and starts a test server
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{
		inferenceTimeout: 30 * time.Second,
		retryLimit:       1,
		routerEnabled:    true,
		retrieval:        true,
		rateRPS:          500,
		rateBurst:        500,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Create temp directory for audit output
	tempDir, err := os.MkdirTemp("", "advisor-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	// Find available port
	port, err := findAvailablePort()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	ctx := context.Background()

	mock := NewMockModelServer()

	cleanup := func() {
		mock.Close()
		os.RemoveAll(tempDir)
	}

	driver, err := inference.NewDriver(ctx, inference.Config{
		BaseURL:       mock.URL(),
		Model:         "advisor-mock",
		Timeout:       cfg.inferenceTimeout,
		RetryLimit:    cfg.retryLimit,
		MaxConcurrent: 4,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create inference driver: %w", err)
	}

	store := history.NewMemoryStore(history.MemoryOptions{
		HistoryTokenBudget: 2048,
	})

	var retriever retrieval.Retriever
	if cfg.retrieval {
		retriever = retrieval.NewFailOpen(knowledge.Default(), 2*time.Second)
	}

	classifier := intent.NewClassifier(driver, 5*time.Second, cfg.routerEnabled)

	rules := cfg.rules
	if rules == nil {
		rules = safety.DefaultRules()
	}
	chain, err := safety.NewChain(rules)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to build safety chain: %w", err)
	}

	engine := orchestrator.New(
		orchestrator.Config{
			MaxContextTokens:   4096,
			HistoryTokenBudget: 2048,
			RetrievalK:         3,
			InferenceTimeout:   cfg.inferenceTimeout,
		},
		normalize.New(0),
		store,
		retriever,
		classifier,
		prompt.NewComposer(),
		driver,
		chain,
	)

	collector := metrics.NewCollector()

	auditWriter, err := audit.NewWriter(filepath.Join(tempDir, "audit"))
	if err != nil {
		collector.Close()
		cleanup()
		return nil, fmt.Errorf("failed to create audit writer: %w", err)
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = port
	serverConfig.RateRPS = cfg.rateRPS
	serverConfig.RateBurst = cfg.rateBurst

	srv := server.New(serverConfig, engine, store, collector)

	// Start server in background
	go func() {
		_ = srv.Start()
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		srv.Shutdown(ctx)
		auditWriter.Close()
		collector.Close()
		store.Close()
		cleanup()
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Server:    srv,
		BaseURL:   baseURL,
		Engine:    engine,
		Store:     store,
		Collector: collector,
		Audit:     auditWriter,
		Model:     mock,
		TempDir:   tempDir,
		port:      port,
	}, nil
}

// Stop shuts down the test server and cleans up
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if ts.Server != nil {
		if err := ts.Server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if ts.Audit != nil {
		ts.Audit.Close()
	}
	if ts.Collector != nil {
		ts.Collector.Close()
	}
	if ts.Store != nil {
		_ = ts.Store.Close()
	}
	if ts.Model != nil {
		ts.Model.Close()
	}

	if ts.TempDir != "" {
		os.RemoveAll(ts.TempDir)
	}

	return nil
}

// AuditDir is where the server writes its audit log files.
func (ts *TestServer) AuditDir() string {
	return filepath.Join(ts.TempDir, "audit")
}

// Client returns a new test client for this server
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// SSEClient returns a new SSE client for this server
func (ts *TestServer) SSEClient() *SSEClient {
	return NewSSEClient(ts.BaseURL)
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for the server to be ready
func waitForServer(baseURL string, timeout time.Duration) error {
	client := NewTestClient(baseURL)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(context.Background(), "/healthz")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}
