package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/advisor-ai/advisor/internal/config"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/internal/server"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the advisor HTTP service",
	Long: `Start the advisor service: the conversation pipeline behind POST /chat,
session history endpoints, and the /healthz and /metrics surfaces.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	_ = godotenv.Load(".env")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logging.InitFromConfig(cfg.Log)
	defer logging.Close()

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Msg("starting advisor server")

	app, err := server.Build(cmd.Context(), cfg, paths.AuditPath())
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(app.ServerConfig(), app.Engine, app.Store, app.Metrics)

	go func() {
		logging.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
