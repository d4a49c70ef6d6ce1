// Package main provides the entry point for the advisor server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/advisor-ai/advisor/internal/config"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/internal/server"
)

var (
	port      = flag.Int("port", 0, "Server port (overrides config)")
	directory = flag.String("directory", "", "Working directory")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("advisor-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Determine working directory
	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
			os.Exit(1)
		}
	}

	_ = godotenv.Load(".env")

	// Initialize paths
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logging.InitFromConfig(cfg.Log)
	defer logging.Close()

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Msg("starting advisor server")

	// Wire the conversation pipeline
	app, err := server.Build(context.Background(), cfg, paths.AuditPath())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer app.Close()

	srv := server.New(app.ServerConfig(), app.Engine, app.Store, app.Metrics)

	// Start server in goroutine
	go func() {
		logging.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
}
